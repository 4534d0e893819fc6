package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/evident-labs/evidcore/internal/replay"
)

func runReplayCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] != "case" {
		_, _ = fmt.Fprintln(stderr, "Usage: evidctl replay case --case <id> --tenant <id> [--algorithms a,b,c]")
		return 2
	}

	cmd := flag.NewFlagSet("replay case", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		caseID, tenantID int64
		algorithmsCSV    string
		jsonOutput       bool
	)
	cmd.Int64Var(&caseID, "case", 0, "Case ID (REQUIRED)")
	cmd.Int64Var(&tenantID, "tenant", 0, "Tenant ID (REQUIRED)")
	cmd.StringVar(&algorithmsCSV, "algorithms", "", "Comma-separated algorithm_id filter (defaults to all)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output report as JSON")
	if err := cmd.Parse(args[1:]); err != nil {
		return 2
	}
	if caseID == 0 || tenantID == 0 {
		_, _ = fmt.Fprintln(stderr, "Error: --case and --tenant are required")
		return 2
	}

	var filter []string
	if algorithmsCSV != "" {
		filter = strings.Split(algorithmsCSV, ",")
	}

	ctx := context.Background()
	sys, err := newSystem(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	engine := replay.Engine{Registry: sys.registry, Relational: sys.relational, Store: sys.store, Audit: sys.audit}
	rc := sys.algorithmContext(ctx)
	report, err := engine.ReplayCase(rc, caseID, tenantID, filter)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(report, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		if report.AllReproducible {
			_, _ = fmt.Fprintln(stdout, "✅ All recorded runs reproduced")
		} else {
			_, _ = fmt.Fprintln(stdout, "❌ Reproducibility failures detected")
		}
		_, _ = fmt.Fprintf(stdout, "Total: %d  Matched: %d  Mismatched: %d  Errors: %d\n",
			report.TotalRuns, report.Matched, report.Mismatched, report.Errors)
		_, _ = fmt.Fprintf(stdout, "Report hash: %s\n", report.ReportHash)
	}

	if !report.AllReproducible {
		return 1
	}
	return 0
}
