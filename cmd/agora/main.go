package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mverikas/agora/internal/config"
	"github.com/mverikas/agora/internal/notify"
	"github.com/mverikas/agora/internal/registry"
	"github.com/mverikas/agora/internal/run"
	"github.com/mverikas/agora/internal/store"
	"github.com/mverikas/agora/internal/vault"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("agora %s\n", version)
	case "run":
		if err := runCouncil(os.Args[2:]); err != nil {
			slog.Error("run failed", "error", err)
			os.Exit(1)
		}
	case "archive":
		if err := runArchive(os.Args[2:]); err != nil {
			slog.Error("archive failed", "error", err)
			os.Exit(1)
		}
	case "runs":
		if err := listRuns(); err != nil {
			slog.Error("list runs failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: agora <command>

Commands:
  run <taskspec.yaml> [-out <dir>]        Run a planning council for a task
  archive <run-dir> [-f <out.tar.zst>]    Pack a run directory into an archive
  runs                                    List past runs from the ledger
  version                                 Print version
`)
}

func runCouncil(args []string) error {
	var specPath, outDir string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-out":
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for -out")
			}
			i++
			outDir = args[i]
		default:
			if specPath != "" {
				return fmt.Errorf("unexpected argument %q", args[i])
			}
			specPath = args[i]
		}
	}
	if specPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: agora run <taskspec.yaml> [-out <dir>]\n")
		return fmt.Errorf("missing task spec path")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if outDir != "" {
		cfg.Artifacts.BaseDir = outDir
	}

	spec, err := registry.Load(specPath)
	if err != nil {
		return err
	}

	db, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	var v *vault.Vault
	if cfg.Vault.Passphrase != "" {
		v = vault.New(cfg.Vault.Passphrase)
	}

	notifier, err := notify.New(cfg.Telegram)
	if err != nil {
		slog.Warn("telegram notifications disabled", "error", err)
	}

	sup, err := run.NewSupervisor(cfg, db, v, notifier)
	if err != nil {
		return fmt.Errorf("init supervisor: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("starting agora", "version", version, "spec", specPath)

	report := sup.Execute(ctx, spec)
	if !report.Completed() {
		return report.Err
	}

	fmt.Printf("Run %s completed.\nWinner: %s (%s)\nFinal plan: %s/final-plan.md\n",
		report.RunID, report.WinnerLabel, report.WinnerAgent, report.ArtifactDir)
	return nil
}

func listRuns() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	runs, err := db.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	for _, r := range runs {
		line := fmt.Sprintf("%s  %-9s  %s", r.StartedAt.Format("2006-01-02 15:04"), r.Status, r.ID)
		if r.WinnerAgent != "" {
			line += "  winner=" + r.WinnerAgent
		}
		if r.Error != "" {
			line += "  error=" + r.Error
		}
		fmt.Println(line)
	}
	return nil
}
