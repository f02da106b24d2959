package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/ports"
)

// Services are the use cases the commands drive.
type Services struct {
	Documents ports.DocumentService
	Rebuilder ports.IndexRebuilder
	Chat      ports.ChatService
}

var (
	documentService ports.DocumentService
	rebuildService  ports.IndexRebuilder
	chatService     ports.ChatService
)

var errNotConfigured = errors.New("service not configured")

var rootCmd = &cobra.Command{
	Use:           "kbctl",
	Short:         "Administer domain knowledge bases",
	Long:          `Upload and remove knowledge documents, rebuild domain indexes, and ask questions against them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func SetServices(s Services) {
	documentService = s.Documents
	rebuildService = s.Rebuilder
	chatService = s.Chat
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
