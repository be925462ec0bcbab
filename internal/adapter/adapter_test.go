package adapter

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mverikas/agora/internal/council"
)

func TestCustomStdinMode(t *testing.T) {
	a := &Custom{Command: "cat", PromptMode: council.PromptStdin}

	out := a.Invoke(context.Background(), "hello council")
	if out.Failed() {
		t.Fatalf("unexpected failure: %+v", out)
	}
	if out.Stdout != "hello council" {
		t.Errorf("expected prompt echoed from stdin, got %q", out.Stdout)
	}
}

func TestCustomArgMode(t *testing.T) {
	a := &Custom{Command: "echo", PromptMode: council.PromptArg}

	out := a.Invoke(context.Background(), "hello arg")
	if out.Failed() {
		t.Fatalf("unexpected failure: %+v", out)
	}
	if strings.TrimSpace(out.Stdout) != "hello arg" {
		t.Errorf("expected prompt echoed from arg, got %q", out.Stdout)
	}
}

func TestNonZeroExitCaptured(t *testing.T) {
	a := &Custom{Command: "sh", PromptMode: council.PromptStdin, ExtraArgs: []string{"-c", "echo oops >&2; exit 3"}}

	out := a.Invoke(context.Background(), "")
	if out.SpawnErr != nil {
		t.Fatalf("exit status must not be a spawn error: %v", out.SpawnErr)
	}
	if out.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", out.ExitCode)
	}
	if !strings.Contains(out.Stderr, "oops") {
		t.Errorf("stderr not captured: %q", out.Stderr)
	}
	if !out.Failed() {
		t.Error("non-zero exit should count as failed")
	}
}

func TestSpawnFailureCaptured(t *testing.T) {
	a := &Custom{Command: "definitely-not-a-binary-4242", PromptMode: council.PromptStdin}

	out := a.Invoke(context.Background(), "x")
	if out.SpawnErr == nil {
		t.Fatal("expected spawn error for missing binary")
	}
	if out.TimedOut {
		t.Error("spawn failure must not be classified as timeout")
	}
}

func TestTimeoutKillsProcess(t *testing.T) {
	a := &Custom{Command: "sleep", PromptMode: council.PromptArg}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	out := a.Invoke(ctx, "30")
	elapsed := time.Since(start)

	if !out.TimedOut {
		t.Fatalf("expected timeout, got %+v", out)
	}
	if elapsed > 10*time.Second {
		t.Fatalf("process not killed on deadline, waited %v", elapsed)
	}
}

func TestForConfigClosedSet(t *testing.T) {
	tests := []struct {
		kind council.Kind
		ok   bool
	}{
		{council.KindClaude, true},
		{council.KindCodex, true},
		{council.KindGemini, true},
		{council.KindCustom, true},
		{"mystery", false},
	}

	for _, tt := range tests {
		cfg := council.AgentConfig{Name: "a", Kind: tt.kind, Command: "x", PromptMode: council.PromptStdin}
		_, err := ForConfig(cfg)
		if tt.ok && err != nil {
			t.Errorf("kind %q: unexpected error %v", tt.kind, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("kind %q: expected error", tt.kind)
		}
	}
}
