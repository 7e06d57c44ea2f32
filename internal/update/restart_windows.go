//go:build windows

package update

import (
	"fmt"
	"os"
	"os/exec"

	log "github.com/sirupsen/logrus"
)

// Windows has no exec(2); start a detached copy and exit.
func restart(exe string, args []string) error {
	log.Infof("restarting %s", exe)

	cmd := exec.Command(exe, args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to restart: %w", err)
	}
	os.Exit(0)
	return nil
}
