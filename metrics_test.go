package sshed

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentCollector(t *testing.T) {
	agent, socket := startAgent(t, AgentConfig{MaxSessions: 3, Editor: replaceWith("edited\n")})
	path := writeFile(t, "original\n")

	require.NoError(t, NewGuest(GuestConfig{Socket: socket, NoFallback: true}).Edit(context.Background(), path))
	settledStats(t, agent, 1)

	registry := prometheus.NewPedanticRegistry()
	require.NoError(t, registry.Register(NewAgentCollector(agent)))

	expected := `
# HELP sshed_agent_replies_total Session replies by kind
# TYPE sshed_agent_replies_total counter
sshed_agent_replies_total{kind="diff"} 0
sshed_agent_replies_total{kind="full"} 1
sshed_agent_replies_total{kind="unchanged"} 0
# HELP sshed_agent_sessions_total Sessions accepted
# TYPE sshed_agent_sessions_total counter
sshed_agent_sessions_total 1
# HELP sshed_agent_body_bytes_total Body bytes exchanged with guests
# TYPE sshed_agent_body_bytes_total counter
sshed_agent_body_bytes_total{direction="received"} 9
sshed_agent_body_bytes_total{direction="sent"} 7
`
	err := testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"sshed_agent_replies_total", "sshed_agent_sessions_total", "sshed_agent_body_bytes_total")
	assert.NoError(t, err)

	assert.Equal(t, 9, testutil.CollectAndCount(NewAgentCollector(agent),
		"sshed_agent_sessions_total",
		"sshed_agent_replies_total",
		"sshed_agent_rejected_total",
		"sshed_agent_failures_total",
		"sshed_agent_body_bytes_total",
		"sshed_agent_session_seconds_total",
	))
}

func TestMetricsHandler(t *testing.T) {
	agent, _ := startAgent(t, AgentConfig{MaxSessions: 3, Editor: EditorFunc(noEdit)})
	srv := httptest.NewServer(MetricsHandler(agent))
	defer srv.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	status, body := get("/healthz")
	assert.Equal(t, http.StatusOK, status)
	// the accept loop holds a slot while waiting for a guest
	assert.Regexp(t, `^ok [01]/3 sessions\n$`, body)

	status, body = get("/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "sshed_agent_sessions_total 0")
	assert.Contains(t, body, `sshed_agent_session_slots{state="max"} 3`)

	status, _ = get("/nope")
	assert.Equal(t, http.StatusNotFound, status)
}
