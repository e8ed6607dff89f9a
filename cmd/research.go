package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Run and inspect vendor research jobs",
}

// -- research run --

var researchRunCmd = &cobra.Command{
	Use:   "run <vendor-id>",
	Short: "Run research for a vendor and wait for the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initResearch(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Orchestrator.CreateResearchRequest(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "create research")
		}
		if err := env.Orchestrator.ProcessResearch(ctx, job.ID); err != nil {
			return eris.Wrap(err, "process research")
		}

		result, err := env.Store.GetResearch(ctx, job.ID)
		if err != nil {
			return eris.Wrap(err, "load research result")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// -- research request --

var researchRequestCmd = &cobra.Command{
	Use:   "request <vendor-id>",
	Short: "Record a pending research job without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initResearch(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Orchestrator.CreateResearchRequest(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "create research")
		}

		fmt.Printf("Queued research %s for vendor %s\n", job.ID, job.VendorID)
		return nil
	},
}

// -- research process --

var researchProcessCmd = &cobra.Command{
	Use:   "process <research-id>",
	Short: "Process a previously recorded research job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initResearch(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		return env.Orchestrator.ProcessResearch(ctx, args[0])
	},
}

// -- research list --

var researchListCmd = &cobra.Command{
	Use:   "list <vendor-id>",
	Short: "List research jobs for a vendor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initResearch(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		jobs, err := env.Orchestrator.ListResearchForVendor(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "list research")
		}
		if len(jobs) == 0 {
			fmt.Fprintln(os.Stderr, "No research jobs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tMODEL\tREQUESTED\tCOMPLETED")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				j.ID, j.Status, j.Model,
				j.RequestedAt.Format(time.RFC3339),
				formatTimePtr(j.CompletedAt))
		}
		return w.Flush()
	},
}

// -- research get --

var researchGetCmd = &cobra.Command{
	Use:   "get <vendor-id> <research-id>",
	Short: "Show one research job as JSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initResearch(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Orchestrator.GetResearchByID(ctx, args[0], args[1])
		if err != nil {
			return eris.Wrap(err, "get research")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func init() {
	researchCmd.AddCommand(researchRunCmd)
	researchCmd.AddCommand(researchRequestCmd)
	researchCmd.AddCommand(researchProcessCmd)
	researchCmd.AddCommand(researchListCmd)
	researchCmd.AddCommand(researchGetCmd)
	rootCmd.AddCommand(researchCmd)
}
