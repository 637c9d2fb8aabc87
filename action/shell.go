package action

import (
	"fmt"
	"os"
	"os/exec"

	"chordd/log"
)

func startShell(command string) error {
	cmd := exec.Command("sh", "-c", command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	setProcessGroup(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %q: %w", command, err)
	}
	// reap in the background; the event loop never waits on a child
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Warnf("command %q: %v", command, err)
		}
	}()
	return nil
}
