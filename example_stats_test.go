package sshed_test

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/pior/sshed"
)

// Example demonstrating how to serve the agent metrics to Prometheus
func ExampleMetricsHandler() {
	agent, err := sshed.NewAgent(sshed.AgentConfig{MaxSessions: 4})
	if err != nil {
		panic(err)
	}
	defer agent.Close()

	l, err := agent.Listen("")
	if err != nil {
		panic(err)
	}

	go func() {
		_ = http.ListenAndServe("127.0.0.1:9091", sshed.MetricsHandler(agent))
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := agent.Serve(ctx, l); err != nil {
		panic(err)
	}
}

// Example demonstrating how to read the agent stats
func ExampleAgent_Stats() {
	agent, err := sshed.NewAgent(sshed.AgentConfig{
		Editor: sshed.EditorFunc(func(context.Context, string) error { return nil }),
	})
	if err != nil {
		panic(err)
	}
	defer agent.Close()

	stats := agent.Stats()
	fmt.Printf("Sessions: %d\n", stats.Sessions)
	fmt.Printf("  Unchanged: %d\n", stats.Unchanged)
	fmt.Printf("  Diffs: %d\n", stats.DiffReplies)
	fmt.Printf("  Full: %d\n", stats.FullReplies)

	slots := agent.SlotStats()
	fmt.Printf("Slots: %d/%d\n", slots.ActiveSlots, slots.MaxSlots)
	// Output:
	// Sessions: 0
	//   Unchanged: 0
	//   Diffs: 0
	//   Full: 0
	// Slots: 0/16
}
