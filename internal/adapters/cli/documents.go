package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage domain documents",
	Long:  `List, upload, or delete the knowledge documents of a domain.`,
}

var documentsListCmd = &cobra.Command{
	Use:   "list [domain]",
	Short: "List documents of a domain",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsList,
}

var documentsUploadCmd = &cobra.Command{
	Use:   "upload [domain] [file]",
	Short: "Upload a document into a domain",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentsUpload,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete [domain] [doc-id]",
	Short: "Delete a document from a domain",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentsDelete,
}

func init() {
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsUploadCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runDocumentsList(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return fmt.Errorf("documents: %w", errNotConfigured)
	}

	docs, err := documentService.ListDocuments(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		cmd.Printf("No documents found for domain: %s\n", args[0])
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSIZE\tUPLOADED")
	for _, doc := range docs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", doc.ID, doc.Name, doc.Size, doc.UploadedAt.Format(time.RFC3339))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	cmd.Printf("\nTotal: %d documents\n", len(docs))
	return nil
}

func runDocumentsUpload(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return fmt.Errorf("documents: %w", errNotConfigured)
	}

	path := args[1]
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	doc, err := documentService.StoreDocument(commandContext(cmd), args[0], domain.UploadedFile{
		Filename: filepath.Base(path),
		Size:     info.Size(),
		Body:     file,
	})
	if err != nil {
		return fmt.Errorf("failed to upload document: %w", err)
	}

	cmd.Printf("Uploaded %s as %s (%d bytes)\n", doc.Name, doc.ID, doc.Size)
	return nil
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return fmt.Errorf("documents: %w", errNotConfigured)
	}

	if err := documentService.DeleteDocument(commandContext(cmd), args[0], args[1]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	cmd.Printf("Deleted document %s\n", args[1])
	return nil
}
