package gateways

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// ScriptExecutor runs verified installer scripts through an interpreter in a
// child process that inherits the parent's stdio.
type ScriptExecutor struct {
	defaultTimeout time.Duration
}

// NewScriptExecutor creates a new script executor
func NewScriptExecutor() *ScriptExecutor {
	return &ScriptExecutor{
		defaultTimeout: 30 * time.Minute,
	}
}

// Execute marks scriptPath executable and invokes it via interpreter with
// the given arguments, inheriting stdio. It returns the child's exit status.
// A non-zero exit is reported through the error; the exit code is returned
// either way.
func (se *ScriptExecutor) Execute(ctx context.Context, interpreter, scriptPath string, args []string) (int, error) {
	if interpreter == "" {
		return -1, fmt.Errorf("interpreter not specified")
	}

	if err := os.Chmod(scriptPath, 0o700); err != nil {
		return -1, fmt.Errorf("failed to mark script executable: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, se.defaultTimeout)
	defer cancel()

	argv := append([]string{scriptPath}, args...)
	//nolint:gosec // G204: Script execution is the whole point; content is verified first
	cmd := exec.CommandContext(execCtx, interpreter, argv...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), fmt.Errorf("script exited with status %d", exitErr.ExitCode())
		}
		if execCtx.Err() == context.DeadlineExceeded {
			return -1, fmt.Errorf("script execution timeout after %v", se.defaultTimeout)
		}
		return -1, fmt.Errorf("failed to invoke script: %w", err)
	}

	return 0, nil
}
