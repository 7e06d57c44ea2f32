//go:build !windows

package update

import (
	"fmt"
	"os"
	"syscall"

	log "github.com/sirupsen/logrus"
)

func restart(exe string, args []string) error {
	log.Infof("restarting %s", exe)
	if err := syscall.Exec(exe, args, os.Environ()); err != nil {
		return fmt.Errorf("failed to restart: %w", err)
	}
	return nil
}
