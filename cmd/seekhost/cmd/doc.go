package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/seekhost/internal/engine"
	"github.com/Aman-CERP/seekhost/internal/index"
	"github.com/Aman-CERP/seekhost/internal/output"
)

const defaultBatchSize = 1000

func newDocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Index, update, fetch and delete documents",
	}
	cmd.AddCommand(newDocAddCmd())
	cmd.AddCommand(newDocUpdateCmd())
	cmd.AddCommand(newDocGetCmd())
	cmd.AddCommand(newDocDeleteCmd())
	cmd.AddCommand(newDocFileCmd())
	cmd.AddCommand(newDocGetFileCmd())
	return cmd
}

func newDocAddCmd() *cobra.Command {
	var (
		batchSize int
		commit    bool
	)

	cmd := &cobra.Command{
		Use:   "add <index-id> <file>",
		Short: "Index documents from a JSON array or NDJSON file",
		Long: `Index documents. The file holds a JSON array of objects or one
object per line. Use "-" to read stdin.

Documents become visible to searches after a commit; pass --commit to
commit once all batches are accepted.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "index id")
			if err != nil {
				return err
			}
			if batchSize <= 0 {
				return fmt.Errorf("--batch-size must be positive")
			}
			data, err := readInput(args[1], cmd.InOrStdin())
			if err != nil {
				return err
			}
			docs, err := decodeDocuments(data)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				return fmt.Errorf("no documents in %s", args[1])
			}

			client, key, err := accountClient()
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			ctx := cmd.Context()
			var count uint64
			for start := 0; start < len(docs); start += batchSize {
				end := min(start+batchSize, len(docs))
				n, err := client.IndexDocuments(ctx, key, id, docs[start:end])
				if err != nil {
					return fmt.Errorf("batch at document %d: %w", start, err)
				}
				count = n
				out.Progress(end, len(docs), "indexing")
			}
			out.Successf("Accepted %d documents into index %d (%d documents)", len(docs), id, count)

			if commit {
				searchable, err := client.CommitIndex(ctx, key, id)
				if err != nil {
					return err
				}
				out.Successf("Committed (%d documents searchable)", searchable)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", defaultBatchSize, "Documents per request")
	cmd.Flags().BoolVar(&commit, "commit", false, "Commit after indexing")
	return cmd
}

func newDocUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <index-id> <file>",
		Short: "Replace documents by id",
		Long: `Replace documents in place. The file is a JSON array of
{"id": <doc-id>, "document": {...}} objects; each id keeps its value.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "index id")
			if err != nil {
				return err
			}
			var docs []engine.IDDocument
			if err := readJSON(args[1], cmd.InOrStdin(), &docs); err != nil {
				return err
			}

			client, key, err := accountClient()
			if err != nil {
				return err
			}
			n, err := client.UpdateDocuments(cmd.Context(), key, id, docs)
			if err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("Updated %d documents in index %d (%d documents)", len(docs), id, n)
			return nil
		},
	}
}

func newDocGetCmd() *cobra.Command {
	var req index.GetDocumentRequest

	cmd := &cobra.Command{
		Use:   "get <index-id> <doc-id>",
		Short: "Print a stored document as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "index id")
			if err != nil {
				return err
			}
			docID, err := parseID(args[1], "document id")
			if err != nil {
				return err
			}

			client, key, err := accountClient()
			if err != nil {
				return err
			}
			doc, err := client.GetDocument(cmd.Context(), key, id, docID, req)
			if err != nil {
				return err
			}
			return output.New(cmd.OutOrStdout()).JSON(doc)
		},
	}

	cmd.Flags().StringSliceVar(&req.Fields, "fields", nil, "Stored fields to return (default all)")
	cmd.Flags().StringSliceVar(&req.QueryTerms, "highlight", nil, "Terms to highlight")
	return cmd
}

func newDocDeleteCmd() *cobra.Command {
	var (
		query    string
		realtime bool
	)

	cmd := &cobra.Command{
		Use:   "delete <index-id> [doc-id...]",
		Short: "Delete documents by id or by query",
		Long: `Delete documents. Pass document ids, or --query to delete every
document matching a query.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "index id")
			if err != nil {
				return err
			}
			if (query == "") == (len(args) == 1) {
				return fmt.Errorf("pass document ids or --query, not both")
			}

			client, key, err := accountClient()
			if err != nil {
				return err
			}

			var n uint64
			if query != "" {
				n, err = client.DeleteByQuery(cmd.Context(), key, id,
					index.SearchRequest{Query: query, Realtime: realtime})
			} else {
				ids := make([]uint64, 0, len(args)-1)
				for _, a := range args[1:] {
					docID, perr := parseID(a, "document id")
					if perr != nil {
						return perr
					}
					ids = append(ids, docID)
				}
				n, err = client.DeleteDocuments(cmd.Context(), key, id, ids)
			}
			if err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("Deleted from index %d (%d documents remain)", id, n)
			return nil
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "Delete documents matching this query")
	cmd.Flags().BoolVar(&realtime, "realtime", true, "Include uncommitted documents in --query")
	return cmd
}

func newDocFileCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "file <index-id> <path>",
		Short: "Extract and index a text or PDF file",
		Long: `Index a file. Text and PDF content is extracted into the title,
body, url and date fields when the schema has them, and the raw bytes
are kept for 'doc get-file'.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "index id")
			if err != nil {
				return err
			}
			path := args[1]
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			ts := info.ModTime()
			if date != "" {
				if ts, err = time.Parse(time.RFC3339, date); err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				abs = path
			}

			client, key, err := accountClient()
			if err != nil {
				return err
			}
			n, err := client.IndexFile(cmd.Context(), key, id, abs, ts.Unix(), data)
			if err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("Indexed %s into index %d (%d documents)", filepath.Base(path), id, n)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Document date in RFC 3339 (default file mtime)")
	return cmd
}

func newDocGetFileCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "get-file <index-id> <doc-id>",
		Short: "Fetch the original bytes of an indexed file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "index id")
			if err != nil {
				return err
			}
			docID, err := parseID(args[1], "document id")
			if err != nil {
				return err
			}

			client, key, err := accountClient()
			if err != nil {
				return err
			}
			data, err := client.GetFile(cmd.Context(), key, id, docID)
			if err != nil {
				return err
			}

			if outPath == "" || outPath == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return err
			}
			output.New(cmd.ErrOrStderr()).Successf("Wrote %d bytes to %s", len(data), outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write to file instead of stdout")
	return cmd
}
