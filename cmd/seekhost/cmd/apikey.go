package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/seekhost/internal/output"
	"github.com/Aman-CERP/seekhost/internal/tenant"
)

func newAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Create and delete accounts",
		Long: `Manage accounts. Both subcommands need the master key, read from
--master-key, the config file or $SEEKHOST_MASTER_KEY.`,
	}
	cmd.AddCommand(newAPIKeyCreateCmd())
	cmd.AddCommand(newAPIKeyDeleteCmd())
	return cmd
}

func newAPIKeyCreateCmd() *cobra.Command {
	var (
		masterKey  string
		quota      tenant.Quota
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account and print its apikey",
		Long: `Create an account. The apikey is printed once and cannot be
recovered; only its hash is stored.

Quota flags override the configured defaults. Zero means unlimited.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if masterKey == "" {
				masterKey = cfg.Server.MasterKey
			}

			var q *tenant.Quota
			if cmd.Flags().Changed("indices-max") || cmd.Flags().Changed("documents-max") ||
				cmd.Flags().Changed("rate-limit") {
				merged := cfg.Defaults.Quota
				if cmd.Flags().Changed("indices-max") {
					merged.IndicesMax = quota.IndicesMax
				}
				if cmd.Flags().Changed("documents-max") {
					merged.DocumentsMax = quota.DocumentsMax
				}
				if cmd.Flags().Changed("rate-limit") {
					merged.RateLimit = quota.RateLimit
				}
				q = &merged
			}

			client, err := newClient()
			if err != nil {
				return err
			}
			res, err := client.CreateAPIKey(cmd.Context(), masterKey, q)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				return out.JSON(res)
			}
			out.Successf("Created account %d", res.ID)
			out.KeyValue("apikey", res.APIKey)
			out.Newline()
			out.Status("", "Store the apikey now; it cannot be shown again.")
			return nil
		},
	}

	cmd.Flags().StringVar(&masterKey, "master-key", "", "Master key (default from config)")
	cmd.Flags().IntVar(&quota.IndicesMax, "indices-max", 0, "Maximum number of indices")
	cmd.Flags().IntVar(&quota.DocumentsMax, "documents-max", 0, "Maximum documents per index")
	cmd.Flags().Float64Var(&quota.RateLimit, "rate-limit", 0, "Requests per second")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newAPIKeyDeleteCmd() *cobra.Command {
	var masterKey string

	cmd := &cobra.Command{
		Use:   "delete <apikey>",
		Short: "Delete an account and all its indices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if masterKey == "" {
				masterKey = cfg.Server.MasterKey
			}

			client, err := newClient()
			if err != nil {
				return err
			}
			remaining, err := client.DeleteAPIKey(cmd.Context(), masterKey, args[0])
			if err != nil {
				return err
			}

			output.New(cmd.OutOrStdout()).Successf("Deleted account (%d remaining)", remaining)
			return nil
		},
	}

	cmd.Flags().StringVar(&masterKey, "master-key", "", "Master key (default from config)")
	return cmd
}

