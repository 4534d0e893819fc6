// Command evidctl is the evidence core's operator CLI, grounded on
// Mindburn-Labs-helm's cmd/helm dispatcher pattern: a thin Run(args, stdout,
// stderr) int entrypoint that main wraps with os.Exit, so the dispatch
// logic itself is testable without a process boundary.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run dispatches evidctl's subcommands. Exit codes follow the teacher's
// convention: 0 success, 1 check/verification failed, 2 usage/runtime error.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stdout)
		return 2
	}

	switch args[1] {
	case "algorithms":
		return runAlgorithmsCmd(args[2:], stdout, stderr)
	case "audit":
		return runAuditCmd(args[2:], stdout, stderr)
	case "export":
		return runExportCmd(args[2:], stdout, stderr)
	case "replay":
		return runReplayCmd(args[2:], stdout, stderr)
	case "staging":
		return runStagingCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "evidctl — evidence core operator CLI")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  evidctl <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	fmt.Fprintln(w, "  algorithms list               List registered algorithms and versions")
	fmt.Fprintln(w, "  algorithms run                Run one algorithm against a case (--algorithm, --case, --tenant)")
	fmt.Fprintln(w, "  audit integrity                Run the integrity sweep against a case and print the report")
	fmt.Fprintln(w, "  export sealed-package           Build and write a sealed court export package")
	fmt.Fprintln(w, "  replay case                     Replay every recorded run for a case and report reproducibility")
	fmt.Fprintln(w, "  staging finalize                Finalize a chunked upload staging session")
	fmt.Fprintln(w, "  help                            Show this help")
}
