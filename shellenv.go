package sshed

import (
	"fmt"
	"strings"
)

var shellFormats = map[string]string{
	"bash": "export %s=%s",
	"csh":  "setenv %s %s",
	"fish": "setenv %s %s",
}

// ExportCommand returns the shell command setting the environment variable
// name to value.
//
// Shells other than bash, csh and fish are mapped to csh when their name ends
// with "csh" and to bash otherwise. With smart false they are an error.
func ExportCommand(shell, name, value string, smart bool) (string, error) {
	format, ok := shellFormats[shell]
	if !ok {
		if !smart {
			return "", fmt.Errorf("sshed: unknown shell %q", shell)
		}
		if strings.HasSuffix(shell, "csh") {
			format = shellFormats["csh"]
		} else {
			format = shellFormats["bash"]
		}
	}
	return fmt.Sprintf(format, name, value), nil
}
