package sshed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSSHVersion(t *testing.T) {
	tests := []struct {
		output  string
		project string
		version string
	}{
		{"OpenSSH_6.7p1 Debian-5, OpenSSL 1.0.1k 8 Jan 2015\n", OpenSSH, "6.7p1"},
		{"OpenSSH_9.6p1 Ubuntu-3ubuntu13, OpenSSL 3.0.13 30 Jan 2024\n", OpenSSH, "9.6p1"},
		{"OpenSSH_for_Windows_8.1p1, LibreSSL 3.0.2\n", OpenSSH, "for_Windows_8.1p1,"},
		{"Dropbear v2014.65\n", Dropbear, "v2014.65"},
		{"Dropbear\n", "", ""},
		{"usage: ssh [-46AaCfGgKkMNnqsTtVvXxYy]\n", "", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		project, version := ParseSSHVersion(tt.output)
		assert.Equal(t, tt.project, project, tt.output)
		assert.Equal(t, tt.version, version, tt.output)
	}
}

func TestSSHClient_Valid(t *testing.T) {
	tests := []struct {
		project string
		version string
		valid   bool
	}{
		{OpenSSH, "6.7p1", true},
		{OpenSSH, "6.9", true},
		{OpenSSH, "7.0p1", true},
		{OpenSSH, "10.0p2", true},
		{OpenSSH, "6.6.1p1", false},
		{OpenSSH, "5.9p1", false},
		{OpenSSH, "for_Windows_8.1p1,", false},
		{OpenSSH, "garbage", false},
		{Dropbear, "v2014.65", false},
		{"", "", false},
	}

	for _, tt := range tests {
		c := &SSHClient{Executable: "ssh", Project: tt.project, Version: tt.version}
		assert.Equal(t, tt.valid, c.Valid(), c.String())
	}
}

func TestSSHClient_Command(t *testing.T) {
	c := &SSHClient{Executable: "/usr/bin/ssh", Project: OpenSSH, Version: "9.6p1"}
	argv := c.Command("/tmp/sshed-1/socket", []string{"-p", "2222", "user@host"}, "zsh")

	assert.Equal(t, []string{
		"ssh",
		"-o", "StreamLocalBindUnlink=yes",
		"-R", "/tmp/sshed-1/socket:/tmp/sshed-1/socket",
		"-t",
		"-p", "2222", "user@host",
		"SSHED_SOCK=/tmp/sshed-1/socket", "zsh",
	}, argv)
}

func TestFindSSHClient_NotFound(t *testing.T) {
	lookPath := func(string) (string, error) { return "", errors.New("not found") }
	_, err := FindSSHClient(context.Background(), "myssh", lookPath)
	require.ErrorIs(t, err, ErrNoSSHClient)
}

func TestFindSSHClient_Probe(t *testing.T) {
	var looked []string
	lookPath := func(name string) (string, error) {
		looked = append(looked, name)
		if name == "ssh" {
			// any executable printing nothing useful
			return "/bin/true", nil
		}
		return "", errors.New("not found")
	}

	c, err := FindSSHClient(context.Background(), "myssh", lookPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"myssh", "ssh"}, looked)
	assert.Equal(t, "/bin/true", c.Executable)
	assert.Empty(t, c.Project)
	assert.False(t, c.Valid())
}
