package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild [domain]",
	Short: "Rebuild the semantic index of a domain",
	Long: `Runs the index pipeline over the domain's uploads and waits for it.
With --async the rebuild is queued for the worker instead, subject to the rebuild cooldown.`,
	Args: cobra.ExactArgs(1),
	RunE: runRebuild,
}

var rebuildAsync bool

func init() {
	rebuildCmd.Flags().BoolVar(&rebuildAsync, "async", false, "Queue the rebuild for the worker")
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) error {
	if rebuildService == nil {
		return fmt.Errorf("rebuild: %w", errNotConfigured)
	}

	result, err := rebuildService.RequestRebuild(commandContext(cmd), args[0], rebuildAsync)
	if err != nil {
		var failure *domain.PipelineFailure
		if errors.As(err, &failure) {
			printOutput(cmd, failure.Stdout, failure.Stderr)
		}
		return fmt.Errorf("rebuild failed: %w", err)
	}

	switch result.Status {
	case domain.RebuildThrottled:
		cmd.Printf("Rebuild for %s throttled, retry in %s\n", result.Domain, result.RetryAfter.Round(time.Second))
	case domain.RebuildQueued:
		cmd.Printf("Rebuild for %s queued\n", result.Domain)
	case domain.RebuildCleared:
		cmd.Printf("No documents for %s, index cleared\n", result.Domain)
	default:
		cmd.Printf("Rebuild for %s completed\n", result.Domain)
		if result.Result != nil {
			printOutput(cmd, result.Result.Stdout, result.Result.Stderr)
		}
	}
	return nil
}

func printOutput(cmd *cobra.Command, stdout, stderr string) {
	if s := strings.TrimSpace(stdout); s != "" {
		cmd.Println(s)
	}
	if s := strings.TrimSpace(stderr); s != "" {
		cmd.PrintErrln(s)
	}
}
