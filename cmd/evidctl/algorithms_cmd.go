package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/model"
)

func runAlgorithmsCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "Usage: evidctl algorithms <list|run> [flags]")
		return 2
	}
	switch args[0] {
	case "list":
		return runAlgorithmsList(args[1:], stdout, stderr)
	case "run":
		return runAlgorithmsRun(args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown algorithms subcommand: %s\n", args[0])
		return 2
	}
}

func runAlgorithmsList(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("algorithms list", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	jsonOutput := cmd.Bool("json", false, "Output as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	sys, err := newSystem(context.Background())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	algs := sys.registry.List()
	sort.Slice(algs, func(i, j int) bool {
		if algs[i].ID() != algs[j].ID() {
			return algs[i].ID() < algs[j].ID()
		}
		return algs[i].Version() < algs[j].Version()
	})

	if *jsonOutput {
		type entry struct {
			ID          string `json:"algorithm_id"`
			Version     string `json:"version"`
			Description string `json:"description"`
		}
		entries := make([]entry, 0, len(algs))
		for _, a := range algs {
			entries = append(entries, entry{ID: a.ID(), Version: a.Version(), Description: a.Description()})
		}
		data, _ := json.MarshalIndent(entries, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	for _, a := range algs {
		_, _ = fmt.Fprintf(stdout, "%-20s v%-10s %s\n", a.ID(), a.Version(), a.Description())
	}
	return 0
}

func runAlgorithmsRun(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("algorithms run", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		algorithmID string
		version     string
		caseID      int64
		tenantID    int64
		jsonOutput  bool
	)
	cmd.StringVar(&algorithmID, "algorithm", "", "Algorithm ID to run (REQUIRED)")
	cmd.StringVar(&version, "version", "", "Algorithm version (defaults to latest registered)")
	cmd.Int64Var(&caseID, "case", 0, "Case ID (REQUIRED)")
	cmd.Int64Var(&tenantID, "tenant", 0, "Tenant ID (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if algorithmID == "" || caseID == 0 || tenantID == 0 {
		_, _ = fmt.Fprintln(stderr, "Error: --algorithm, --case, and --tenant are required")
		return 2
	}

	ctx := context.Background()
	sys, err := newSystem(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	alg, err := sys.registry.Get(algorithmID, version)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	params := model.AlgorithmParams{CaseID: caseID, TenantID: tenantID, ActorName: "evidctl"}
	rc := sys.algorithmContext(ctx)
	result, err := algorithm.Run(rc, alg, params, nil)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		_, _ = fmt.Fprintf(stdout, "Run ID:       %s\n", result.RunID)
		_, _ = fmt.Fprintf(stdout, "Algorithm:    %s v%s\n", result.AlgorithmID, result.AlgorithmVersion)
		_, _ = fmt.Fprintf(stdout, "Success:      %v\n", result.Success)
		_, _ = fmt.Fprintf(stdout, "Result hash:  %s\n", result.ResultHash)
		_, _ = fmt.Fprintf(stdout, "Integrity:    %s\n", result.IntegrityCheck)
	}

	if !result.Success {
		return 1
	}
	return 0
}
