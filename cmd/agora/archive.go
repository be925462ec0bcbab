package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	goarchive "github.com/moby/go-archive"
)

// runArchive packs a run directory into a zstd-compressed tarball. The run
// directory itself is left untouched; retention policy stays external.
func runArchive(args []string) error {
	var runDir, outputPath string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f":
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for -f")
			}
			i++
			outputPath = args[i]
		default:
			if runDir != "" {
				return fmt.Errorf("unexpected argument %q", args[i])
			}
			runDir = args[i]
		}
	}

	if runDir == "" {
		fmt.Fprintf(os.Stderr, "Usage: agora archive <run-dir> [-f <output.tar.zst>]\n")
		return fmt.Errorf("missing run directory")
	}

	info, err := os.Stat(runDir)
	if err != nil {
		return fmt.Errorf("stat run dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", runDir)
	}

	if outputPath == "" {
		outputPath = strings.TrimSuffix(filepath.Clean(runDir), string(filepath.Separator)) + ".tar.zst"
	}

	tr, err := goarchive.TarWithOptions(runDir, &goarchive.TarOptions{})
	if err != nil {
		return fmt.Errorf("create tar stream: %w", err)
	}
	defer tr.Close()

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	defer zw.Close()

	slog.Info("archiving run", "dir", runDir, "output", outputPath)

	if _, err := io.Copy(zw, tr); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	// Close explicitly to catch write errors.
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zstd: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}

	out, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("stat output: %w", err)
	}

	fmt.Printf("Archive complete: %s (%s)\n", outputPath, formatSize(out.Size()))
	return nil
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d bytes", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
