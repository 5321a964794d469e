package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"transportagent/internal/coordinator"
	"transportagent/internal/model"
)

// newActionCmd creates a command running one pass of the named agent
func (r *runner) newActionCmd(action string, aliases []string, short string) *cobra.Command {
	return &cobra.Command{
		Use:     action,
		Aliases: aliases,
		Short:   short,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.open(cmd)
			if err != nil {
				return r.fail(err)
			}
			defer a.close()

			ctx := cmd.Context()
			coord := coordinator.New(a.agentFor(ctx, action), cmd.OutOrStdout(), a.log("coordinator"))

			res, err := coord.Run(ctx, action)
			r.exitCode = coordinator.ExitCode(res, err)
			return err
		},
	}
}

// newImportCmd creates the import command and its subcommands
func (r *runner) newImportCmd() *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Load CSV files into the database",
	}

	importCmd.AddCommand(&cobra.Command{
		Use:   "items FILE",
		Short: "Import request series",
		Long: `Import request series from a CSV file with the header
ticker,yellow_key,mnemonic,overrides,optional_elements,pricing_source,
program_code,interface_code,start_date,end_date,register_series

The file is imported only if every row is valid. "UND" stands for an empty value.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.open(cmd)
			if err != nil {
				return r.fail(err)
			}
			defer a.close()

			n, err := a.importer().ImportItems(cmd.Context(), args[0])
			if err != nil {
				return r.fail(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d request items\n", n)
			return nil
		},
	})

	importCmd.AddCommand(&cobra.Command{
		Use:   "statuses FILE",
		Short: "Import the vendor return-status table",
		Long: `Import vendor row-status descriptions from a CSV file with the header
code,getdata_descr,gethistory_descr

Existing codes are replaced and their cached descriptions dropped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.open(cmd)
			if err != nil {
				return r.fail(err)
			}
			defer a.close()

			ctx := cmd.Context()
			n, err := a.importer().ImportReturnStatuses(ctx, args[0])
			if err != nil {
				return r.fail(err)
			}

			statuses, err := a.store.ReturnStatuses(ctx)
			if err != nil {
				return r.fail(err)
			}
			codes := make([]int, len(statuses))
			for i, st := range statuses {
				codes[i] = st.Code
			}
			a.statusLookup(ctx).Forget(ctx, codes...)

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d return statuses\n", n)
			return nil
		},
	})

	return importCmd
}

// newReportCmd creates the report command
func (r *runner) newReportCmd() *cobra.Command {
	var (
		itemStatus string
		batchID    int64
		failed     bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize items and batches by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.open(cmd)
			if err != nil {
				return r.fail(err)
			}
			defer a.close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch {
			case batchID > 0:
				err = reportBatch(ctx, out, a.store, batchID)
			case itemStatus != "":
				err = reportItems(ctx, out, a.store, model.ItemStatus(strings.ToUpper(itemStatus)))
			case failed:
				err = reportFailedBatches(ctx, out, a.store)
			default:
				err = reportCounts(ctx, out, a.store)
			}
			if err != nil {
				return r.fail(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&itemStatus, "status", "", "List the items in this status, e.g. INVALID")
	cmd.Flags().Int64Var(&batchID, "batch", 0, "Show one batch and its items")
	cmd.Flags().BoolVar(&failed, "errors", false, "List the batches in ERROR with their messages")

	return cmd
}
