// Package adapter turns an agent configuration into an actual process
// invocation. Each known kind maps to one adapter; unknown CLIs use the
// custom adapter parameterized by command and prompt mode.
//
// All agent stdout is treated as opaque data. Adapters never interpret or
// execute anything an agent prints.
package adapter

import (
	"context"
	"fmt"

	"github.com/mverikas/agora/internal/council"
)

// Outcome is the captured result of one agent process. Spawn failures,
// non-zero exits, and timeouts are all carried as values; escalation is the
// collector's job.
type Outcome struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	SpawnErr error
}

// Failed reports whether the process produced anything other than a clean exit.
func (o Outcome) Failed() bool {
	return o.SpawnErr != nil || o.TimedOut || o.ExitCode != 0
}

// Adapter invokes one external agent with a prompt and captures its output.
// Implementations must respect ctx cancellation by terminating the child.
type Adapter interface {
	Invoke(ctx context.Context, prompt string) Outcome
}

// ForConfig selects the adapter for a validated agent config.
func ForConfig(cfg council.AgentConfig) (Adapter, error) {
	switch cfg.Kind {
	case council.KindClaude:
		return &Claude{Model: cfg.Model, ExtraArgs: cfg.ExtraArgs}, nil
	case council.KindCodex:
		return &Codex{Model: cfg.Model, ExtraArgs: cfg.ExtraArgs}, nil
	case council.KindGemini:
		return &Gemini{Model: cfg.Model, ExtraArgs: cfg.ExtraArgs}, nil
	case council.KindCustom:
		return &Custom{
			Command:    cfg.Command,
			PromptMode: cfg.PromptMode,
			Model:      cfg.Model,
			ExtraArgs:  cfg.ExtraArgs,
		}, nil
	default:
		return nil, fmt.Errorf("no adapter for kind %q", cfg.Kind)
	}
}

// Claude invokes the claude CLI in non-interactive print mode, prompt on stdin.
type Claude struct {
	Model     string
	ExtraArgs []string
}

func (a *Claude) Invoke(ctx context.Context, prompt string) Outcome {
	args := []string{"--print"}
	if a.Model != "" {
		args = append(args, "--model", a.Model)
	}
	args = append(args, a.ExtraArgs...)
	return run(ctx, "claude", args, prompt)
}

// Codex invokes the codex CLI in exec mode, prompt on stdin.
type Codex struct {
	Model     string
	ExtraArgs []string
}

func (a *Codex) Invoke(ctx context.Context, prompt string) Outcome {
	args := []string{"exec"}
	if a.Model != "" {
		args = append(args, "--model", a.Model)
	}
	args = append(args, a.ExtraArgs...)
	args = append(args, "-")
	return run(ctx, "codex", args, prompt)
}

// Gemini invokes the gemini CLI, prompt as argument.
type Gemini struct {
	Model     string
	ExtraArgs []string
}

func (a *Gemini) Invoke(ctx context.Context, prompt string) Outcome {
	var args []string
	if a.Model != "" {
		args = append(args, "--model", a.Model)
	}
	args = append(args, a.ExtraArgs...)
	args = append(args, "-p", prompt)
	return run(ctx, "gemini", args, "")
}

// Custom invokes an arbitrary command. PromptMode decides whether the prompt
// goes to stdin or is appended as the final argument.
type Custom struct {
	Command    string
	PromptMode council.PromptMode
	Model      string
	ExtraArgs  []string
}

func (a *Custom) Invoke(ctx context.Context, prompt string) Outcome {
	var args []string
	if a.Model != "" {
		args = append(args, "--model", a.Model)
	}
	args = append(args, a.ExtraArgs...)

	stdin := ""
	switch a.PromptMode {
	case council.PromptArg:
		args = append(args, prompt)
	default:
		stdin = prompt
	}
	return run(ctx, a.Command, args, stdin)
}
