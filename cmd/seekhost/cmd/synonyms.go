package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/seekhost/internal/engine"
	"github.com/Aman-CERP/seekhost/internal/output"
)

func newSynonymsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synonyms",
		Short: "Show and edit an index's synonym groups",
	}
	cmd.AddCommand(newSynonymsGetCmd())
	cmd.AddCommand(newSynonymsWriteCmd("set", "Replace all synonym groups"))
	cmd.AddCommand(newSynonymsWriteCmd("add", "Append synonym groups"))
	return cmd
}

func newSynonymsGetCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "get <index-id>",
		Short: "List synonym groups",
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
			groups, err := client.GetSynonyms(cmd.Context(), key, id)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				return out.JSON(groups)
			}
			if len(groups) == 0 {
				out.Statusf("", "Index %d has no synonyms", id)
				return nil
			}
			rows := make([][]string, 0, len(groups))
			for _, g := range groups {
				rows = append(rows, []string{strings.Join(g.Terms, ", "), strconv.FormatBool(g.Multiway)})
			}
			out.Table([]string{"TERMS", "MULTIWAY"}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newSynonymsWriteCmd(name, short string) *cobra.Command {
	var (
		file     string
		terms    []string
		multiway bool
	)

	cmd := &cobra.Command{
		Use:   name + " <index-id>",
		Short: short,
		Long: short + `. Groups come from a JSON file of
[{"terms": ["car", "automobile"], "multiway": true}], or a single group
from --terms.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "index id")
			if err != nil {
				return err
			}
			groups, err := synonymGroups(file, terms, multiway, cmd)
			if err != nil {
				return err
			}

			client, key, err := accountClient()
			if err != nil {
				return err
			}
			var n int
			if name == "set" {
				n, err = client.SetSynonyms(cmd.Context(), key, id, groups)
			} else {
				n, err = client.AddSynonyms(cmd.Context(), key, id, groups)
			}
			if err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("Index %d now has %d synonym groups", id, n)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Synonyms JSON file")
	cmd.Flags().StringSliceVar(&terms, "terms", nil, "Terms of one group")
	cmd.Flags().BoolVar(&multiway, "multiway", true, "Every term expands to the others")
	return cmd
}

func synonymGroups(file string, terms []string, multiway bool, cmd *cobra.Command) ([]engine.Synonym, error) {
	switch {
	case file != "" && len(terms) > 0:
		return nil, fmt.Errorf("pass --file or --terms, not both")
	case file != "":
		var groups []engine.Synonym
		if err := readJSON(file, cmd.InOrStdin(), &groups); err != nil {
			return nil, err
		}
		return groups, nil
	case len(terms) > 0:
		return []engine.Synonym{{Terms: terms, Multiway: multiway}}, nil
	default:
		return nil, fmt.Errorf("pass --file or --terms")
	}
}
