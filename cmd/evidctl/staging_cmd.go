package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/evident-labs/evidcore/internal/config"
	"github.com/evident-labs/evidcore/internal/staging"
)

func runStagingCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "Usage: evidctl staging <finalize|cleanup-expired> [flags]")
		return 2
	}
	switch args[0] {
	case "finalize":
		return runStagingFinalize(args[1:], stdout, stderr)
	case "cleanup-expired":
		return runStagingCleanupExpired(args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown staging subcommand: %s\n", args[0])
		return 2
	}
}

func runStagingFinalize(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("staging finalize", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		stagingID  string
		jsonOutput bool
	)
	cmd.StringVar(&stagingID, "staging-id", "", "Staging session ID (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if stagingID == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --staging-id is required")
		return 2
	}

	cfg := config.Load()
	svc, err := staging.NewService(cfg.StagingRoot)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	result, err := svc.Finalize(stagingID)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else if result.Success {
		_, _ = fmt.Fprintf(stdout, "✅ Assembled: %s\n", result.AssembledPath)
		_, _ = fmt.Fprintf(stdout, "SHA-256: %s\n", result.SHA256)
		_, _ = fmt.Fprintf(stdout, "Size:    %d bytes\n", result.SizeBytes)
	} else {
		_, _ = fmt.Fprintf(stdout, "❌ Finalize failed: %s\n", result.Error)
	}

	if !result.Success {
		return 1
	}
	return 0
}

func runStagingCleanupExpired(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("staging cleanup-expired", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	cfg := config.Load()
	svc, err := staging.NewService(cfg.StagingRoot)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	removed, err := svc.CleanupExpired(staging.DefaultTimeout)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	_, _ = fmt.Fprintf(stdout, "Removed %d expired staging session(s)\n", removed)
	return 0
}
