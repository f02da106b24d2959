package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question against a domain knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var (
	askDomain      string
	askLocale      string
	askShowContext bool
)

func init() {
	askCmd.Flags().StringVarP(&askDomain, "domain", "d", "", "Domain to search; empty uses the global index")
	askCmd.Flags().StringVarP(&askLocale, "locale", "l", "", "Answer locale (de, en)")
	askCmd.Flags().BoolVar(&askShowContext, "context", false, "Print the retrieved context items with scores")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return fmt.Errorf("ask: %w", errNotConfigured)
	}

	resp, err := chatService.Answer(commandContext(cmd), strings.Join(args, " "), askLocale, askDomain)
	if err != nil {
		return fmt.Errorf("failed to answer: %w", err)
	}

	cmd.Println(resp.Answer)
	if askShowContext {
		cmd.Println()
		for i, item := range resp.Context {
			cmd.Printf("[%d] %.4f %s\n", i+1, item.Score, item.Label)
		}
	}
	return nil
}
