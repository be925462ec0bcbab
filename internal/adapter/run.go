package adapter

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long we wait for a killed child to release its pipes.
const waitDelay = 5 * time.Second

// run spawns one child process, feeds it the prompt, and captures stdout,
// stderr and the exit status. Context expiry kills the process; the child is
// never left running past its deadline.
func run(ctx context.Context, name string, args []string, stdin string) Outcome {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = waitDelay

	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	out := Outcome{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		return out
	}

	if ctx.Err() != nil {
		out.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
		if !out.TimedOut {
			out.SpawnErr = ctx.Err()
		}
		out.ExitCode = -1
		return out
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out
	}

	// Binary not found, permission denied, or another start failure.
	out.SpawnErr = err
	out.ExitCode = -1
	return out
}
