//go:build unix

package aligner

import (
	"bytes"
	"context"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// runProcessGroup starts the command as the leader of a new process group
// and kills the whole group when ctx is done.
func runProcessGroup(ctx context.Context, name string, args ...string) (Output, error) {
	cmd := exec.Command(name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return Output{}, err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, err
	case <-ctx.Done():
		_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		<-done
		return Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, ctx.Err()
	}
}
