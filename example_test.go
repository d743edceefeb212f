package sshed_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/pior/sshed"
)

// Example shows an agent and a guest editing a file through a socket. The
// agent's editor uppercases the first word.
func Example() {
	agent, err := sshed.NewAgent(sshed.AgentConfig{
		Editor: sshed.EditorFunc(func(ctx context.Context, path string) error {
			return os.WriteFile(path, []byte("HELLO world\n"), 0o600)
		}),
	})
	if err != nil {
		log.Fatal(err)
	}
	defer agent.Close()

	l, err := agent.Listen("")
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = agent.Serve(ctx, l) }()

	f, err := os.CreateTemp("", "example-*.txt")
	if err != nil {
		log.Fatal(err)
	}
	defer os.Remove(f.Name())
	_, _ = f.WriteString("hello world\n")
	_ = f.Close()

	guest := sshed.NewGuest(sshed.GuestConfig{Socket: l.Addr().String(), NoFallback: true})
	if err := guest.Edit(ctx, f.Name()); err != nil {
		log.Fatal(err)
	}

	data, _ := os.ReadFile(f.Name())
	fmt.Print(string(data))
	// Output: HELLO world
}

func ExampleExportCommand() {
	for _, shell := range []string{"bash", "fish", "tcsh", "zsh"} {
		cmd, _ := sshed.ExportCommand(shell, sshed.SocketEnv, "/tmp/sshed-x/socket", true)
		fmt.Println(cmd)
	}
	// Output:
	// export SSHED_SOCK=/tmp/sshed-x/socket
	// setenv SSHED_SOCK /tmp/sshed-x/socket
	// setenv SSHED_SOCK /tmp/sshed-x/socket
	// export SSHED_SOCK=/tmp/sshed-x/socket
}

func ExampleSSHClient_Command() {
	client := &sshed.SSHClient{Executable: "/usr/bin/ssh", Project: sshed.OpenSSH, Version: "9.6p1"}
	fmt.Println(client.Valid())
	fmt.Println(client.Command("/tmp/sshed-x/socket", []string{"host"}, "bash"))
	// Output:
	// true
	// [ssh -o StreamLocalBindUnlink=yes -R /tmp/sshed-x/socket:/tmp/sshed-x/socket -t host SSHED_SOCK=/tmp/sshed-x/socket bash]
}
