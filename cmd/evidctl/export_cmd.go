package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/evident-labs/evidcore/internal/export"
)

func runExportCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] != "sealed-package" {
		_, _ = fmt.Fprintln(stderr, "Usage: evidctl export sealed-package --case <id> --tenant <id> [--out <path>]")
		return 2
	}

	cmd := flag.NewFlagSet("export sealed-package", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		caseID, tenantID int64
		outPath          string
		jsonOutput       bool
	)
	cmd.Int64Var(&caseID, "case", 0, "Case ID (REQUIRED)")
	cmd.Int64Var(&tenantID, "tenant", 0, "Tenant ID (REQUIRED)")
	cmd.StringVar(&outPath, "out", "", "Output path for the ZIP (defaults to EXPORT_ROOT/case_<id>_sealed.zip)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output summary as JSON")
	if err := cmd.Parse(args[1:]); err != nil {
		return 2
	}
	if caseID == 0 || tenantID == 0 {
		_, _ = fmt.Fprintln(stderr, "Error: --case and --tenant are required")
		return 2
	}

	ctx := context.Background()
	sys, err := newSystem(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if outPath == "" {
		outPath = filepath.Join(sys.cfg.ExportRoot, fmt.Sprintf("case_%d_sealed.zip", caseID))
	}

	builder := export.Builder{Registry: sys.registry}
	rc := sys.algorithmContext(ctx)
	result, err := builder.Build(rc, caseID, tenantID, time.Now().UTC())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: cannot create output directory: %v\n", err)
		return 2
	}
	if err := os.WriteFile(outPath, result.PackageBytes, 0o640); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: cannot write sealed package: %v\n", err)
		return 2
	}

	if jsonOutput {
		out := map[string]any{
			"out_path": outPath, "seal_hash": result.SealHash,
			"algorithms_run": result.AlgorithmsRun, "total_files": result.TotalFiles,
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		_, _ = fmt.Fprintf(stdout, "Sealed package written: %s\n", outPath)
		_, _ = fmt.Fprintf(stdout, "Seal hash: %s\n", result.SealHash)
		_, _ = fmt.Fprintf(stdout, "Files:     %d\n", result.TotalFiles)
	}
	return 0
}
