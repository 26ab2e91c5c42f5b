package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/seekhost/internal/engine"
	"github.com/Aman-CERP/seekhost/internal/index"
	"github.com/Aman-CERP/seekhost/internal/output"
	"github.com/Aman-CERP/seekhost/internal/tenant"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the account's indices",
	}
	cmd.AddCommand(newIndexCreateCmd())
	cmd.AddCommand(newIndexLifecycleCmd("delete", "Delete an index and its files"))
	cmd.AddCommand(newIndexLifecycleCmd("commit", "Make accepted documents visible to searches"))
	cmd.AddCommand(newIndexLifecycleCmd("close", "Commit and close an index"))
	cmd.AddCommand(newIndexStatsCmd())
	cmd.AddCommand(newIndexListCmd())
	return cmd
}

func newIndexCreateCmd() *cobra.Command {
	var (
		req          tenant.CreateIndexRequest
		schemaPath   string
		synonymsPath string
		similarity   string
		tokenizer    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an index from a schema file",
		Long: `Create an index. The schema file is a JSON array of fields:

  [
    {"field": "title", "field_type": "text", "stored": true, "indexed": true, "boost": 2},
    {"field": "genre", "field_type": "string", "stored": true, "indexed": true, "facet": true}
  ]

Field types: text, string, i64, u64, f64, bool, timestamp, point.
Use "-" to read the schema from stdin.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := readJSON(schemaPath, cmd.InOrStdin(), &req.Schema); err != nil {
				return err
			}
			if synonymsPath != "" {
				if err := readJSON(synonymsPath, cmd.InOrStdin(), &req.Synonyms); err != nil {
					return err
				}
			}
			req.Similarity = engine.Similarity(similarity)
			req.Tokenizer = engine.Tokenizer(tokenizer)

			client, key, err := accountClient()
			if err != nil {
				return err
			}
			id, err := client.CreateIndex(cmd.Context(), key, req)
			if err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("Created index %d (%s)", id, req.IndexName)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.IndexName, "name", "", "Index name")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "Schema JSON file")
	cmd.Flags().StringVar(&synonymsPath, "synonyms", "", "Synonyms JSON file")
	cmd.Flags().StringVar(&similarity, "similarity", "", "bm25, bm25f, bm25f_proximity or tfidf (default from config)")
	cmd.Flags().StringVar(&tokenizer, "tokenizer", "", "unicode_alphanumeric, unicode_alphanumeric_folded, ascii_alphabetic, whitespace or code")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

// newIndexLifecycleCmd builds delete, commit and close, which share one
// <index-id> argument.
func newIndexLifecycleCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <index-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "index id")
			if err != nil {
				return err
			}
			client, key, err := accountClient()
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			ctx := cmd.Context()
			switch name {
			case "delete":
				remaining, err := client.DeleteIndex(ctx, key, id)
				if err != nil {
					return err
				}
				out.Successf("Deleted index %d (%d remaining)", id, remaining)
			case "commit":
				n, err := client.CommitIndex(ctx, key, id)
				if err != nil {
					return err
				}
				out.Successf("Committed index %d (%d documents)", id, n)
			case "close":
				n, err := client.CloseIndex(ctx, key, id)
				if err != nil {
					return err
				}
				out.Successf("Closed index %d (%d documents)", id, n)
			default:
				return fmt.Errorf("unknown index command %q", name)
			}
			return nil
		},
	}
}

func newIndexStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats <index-id>",
		Short: "Show schema and counters of an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "index id")
			if err != nil {
				return err
			}
			client, key, err := accountClient()
			if err != nil {
				return err
			}
			st, err := client.IndexStats(cmd.Context(), key, id)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				return out.JSON(st)
			}
			printStats(out, st)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printStats(out *output.Writer, st *index.Stats) {
	out.Header(fmt.Sprintf("Index %d: %s", st.ID, st.Name))
	out.KeyValue("Documents", st.IndexedDocCount)
	out.KeyValue("Similarity", st.Similarity)
	out.KeyValue("Tokenizer", st.Tokenizer)
	out.KeyValue("Operations", st.OperationsCount)
	out.KeyValue("Queries", st.QueryCount)
	out.KeyValue("Version", st.Version)
	out.Newline()

	rows := make([][]string, 0, len(st.Schema))
	for _, f := range st.Schema {
		rows = append(rows, []string{
			f.Field, string(f.Type),
			strconv.FormatBool(f.Stored), strconv.FormatBool(f.Indexed), strconv.FormatBool(f.Facet),
		})
	}
	out.Table([]string{"FIELD", "TYPE", "STORED", "INDEXED", "FACET"}, rows)
}

func newIndexListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the account's indices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, key, err := accountClient()
			if err != nil {
				return err
			}
			list, err := client.ListIndices(cmd.Context(), key)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				return out.JSON(list)
			}
			if len(list) == 0 {
				out.Status("", "No indices. Create one with 'seekhost index create'.")
				return nil
			}
			out.Table([]string{"ID", "NAME", "DOCUMENTS", "SIMILARITY", "TOKENIZER"}, indexRows(list))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func indexRows(list []index.Stats) [][]string {
	rows := make([][]string, 0, len(list))
	for _, st := range list {
		rows = append(rows, []string{
			strconv.FormatUint(st.ID, 10), st.Name, strconv.FormatUint(st.IndexedDocCount, 10),
			string(st.Similarity), string(st.Tokenizer),
		})
	}
	return rows
}
