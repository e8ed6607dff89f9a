package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/vendor-research/internal/model"
)

var vendorCmd = &cobra.Command{
	Use:   "vendor",
	Short: "Manage the vendor directory",
}

var (
	vendorAddName    string
	vendorAddWebsite string
)

var vendorAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a vendor",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		vendor, err := st.CreateVendor(ctx, &model.Vendor{
			CompanyName: vendorAddName,
			Website:     vendorAddWebsite,
			IsActive:    true,
		})
		if err != nil {
			return eris.Wrap(err, "create vendor")
		}

		fmt.Printf("Created vendor %s (%s)\n", vendor.ID, vendor.CompanyName)
		return nil
	},
}

var vendorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List vendors",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		vendors, err := st.ListVendors(ctx)
		if err != nil {
			return eris.Wrap(err, "list vendors")
		}
		if len(vendors) == 0 {
			fmt.Fprintln(os.Stderr, "No vendors found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tWEBSITE\tACTIVE")
		for _, v := range vendors {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", v.ID, v.CompanyName, v.Website, v.IsActive)
		}
		return w.Flush()
	},
}

func init() {
	vendorAddCmd.Flags().StringVar(&vendorAddName, "name", "", "company name (required)")
	vendorAddCmd.Flags().StringVar(&vendorAddWebsite, "website", "", "company website URL")
	_ = vendorAddCmd.MarkFlagRequired("name")

	vendorCmd.AddCommand(vendorAddCmd)
	vendorCmd.AddCommand(vendorListCmd)
	rootCmd.AddCommand(vendorCmd)
}
