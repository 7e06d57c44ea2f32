package update

import (
	"fmt"
	"os"
	"path/filepath"
)

// Executable returns the resolved path of the running binary.
func Executable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return exe, nil
	}
	return resolved, nil
}

// Restart replaces the current process with a fresh copy of the (possibly
// updated) executable, passing the same arguments and environment. On
// success it does not return.
func Restart() error {
	return RestartWith(os.Args[1:])
}

// RestartWith is Restart with a different argument list, not including the
// program name.
func RestartWith(args []string) error {
	exe, err := Executable()
	if err != nil {
		return err
	}
	return restart(exe, append([]string{os.Args[0]}, args...))
}
