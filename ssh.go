package sshed

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// SSH client projects.
const (
	OpenSSH  = "OpenSSH"
	Dropbear = "Dropbear"
)

// ErrNoSSHClient is returned when no SSH client executable can be found.
var ErrNoSSHClient = errors.New("sshed: no SSH client found")

// SSHClient is an SSH client executable and the version it reports.
type SSHClient struct {
	Executable string
	Project    string // OpenSSH, Dropbear, or empty when unrecognised
	Version    string // e.g. "6.7p1", "v2014.65"
}

// FindSSHClient looks up name, then ssh and dbclient, and probes the
// version of the first one found.
func FindSSHClient(ctx context.Context, name string, lookPath func(string) (string, error)) (*SSHClient, error) {
	candidates := []string{"ssh", "dbclient"}
	if name != "" {
		candidates = append([]string{name}, candidates...)
	}

	for _, c := range candidates {
		exe, err := lookPath(c)
		if err != nil {
			continue
		}
		out, _ := exec.CommandContext(ctx, exe, "-V").CombinedOutput()
		project, version := ParseSSHVersion(string(out))
		return &SSHClient{Executable: exe, Project: project, Version: version}, nil
	}
	return nil, ErrNoSSHClient
}

// ParseSSHVersion extracts the project and version from the output of
// "ssh -V":
//
//	OpenSSH_6.7p1 Debian-5, OpenSSL 1.0.1k 8 Jan 2015  ->  OpenSSH, 6.7p1
//	Dropbear v2014.65                                   ->  Dropbear, v2014.65
func ParseSSHVersion(output string) (project, version string) {
	fields := strings.Fields(output)
	if len(fields) == 0 {
		return "", ""
	}
	switch {
	case strings.HasPrefix(fields[0], OpenSSH+"_"):
		return OpenSSH, strings.TrimPrefix(fields[0], OpenSSH+"_")
	case fields[0] == Dropbear && len(fields) > 1:
		return Dropbear, fields[1]
	}
	return "", ""
}

// Valid reports whether the client can forward a Unix socket. OpenSSH does
// since 6.7; Dropbear does not.
func (c *SSHClient) Valid() bool {
	if c.Project != OpenSSH {
		return false
	}
	major, minor, ok := parseMajorMinor(c.Version)
	if !ok {
		return false
	}
	return major > 6 || (major == 6 && minor >= 7)
}

func (c *SSHClient) String() string {
	return fmt.Sprintf("%s %s (%s)", c.Project, c.Version, c.Executable)
}

// Command returns the argv forwarding socket to the same path on the remote
// host and starting shell there with SSHED_SOCK set.
func (c *SSHClient) Command(socket string, args []string, shell string) []string {
	argv := []string{
		filepath.Base(c.Executable),
		"-o", "StreamLocalBindUnlink=yes",
		"-R", socket + ":" + socket,
		"-t",
	}
	argv = append(argv, args...)
	return append(argv, SocketEnv+"="+socket, shell)
}

// parseMajorMinor parses the leading "X.Y" of versions like "6.7p1" or
// "9.6".
func parseMajorMinor(v string) (int, int, bool) {
	majorText, rest, ok := strings.Cut(v, ".")
	if !ok {
		return 0, 0, false
	}
	major, err := strconv.Atoi(majorText)
	if err != nil {
		return 0, 0, false
	}
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	minor, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}
