package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/model"
)

func runAuditCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] != "integrity" {
		_, _ = fmt.Fprintln(stderr, "Usage: evidctl audit integrity --case <id> --tenant <id>")
		return 2
	}

	cmd := flag.NewFlagSet("audit integrity", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		caseID, tenantID int64
		jsonOutput       bool
	)
	cmd.Int64Var(&caseID, "case", 0, "Case ID (REQUIRED)")
	cmd.Int64Var(&tenantID, "tenant", 0, "Tenant ID (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output as JSON")
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

	alg, err := sys.registry.Get("integrity_sweep", "")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	rc := sys.algorithmContext(ctx)
	result, err := algorithm.Run(rc, alg, model.AlgorithmParams{CaseID: caseID, TenantID: tenantID, ActorName: "evidctl"}, nil)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		allPassed, _ := result.Payload["all_passed"].(bool)
		if allPassed {
			_, _ = fmt.Fprintln(stdout, "✅ Integrity sweep: ALL PASSED")
		} else {
			_, _ = fmt.Fprintln(stdout, "❌ Integrity sweep: ISSUES DETECTED")
		}
		_, _ = fmt.Fprintf(stdout, "Result hash: %s\n", result.ResultHash)
	}

	if !result.Success {
		return 2
	}
	allPassed, _ := result.Payload["all_passed"].(bool)
	if !allPassed {
		return 1
	}
	return 0
}
