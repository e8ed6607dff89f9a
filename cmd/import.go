package main

import (
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/vendor-research/internal/model"
)

var importFilePath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import vendors from a YAML seed file",
	Long:  "Bulk-loads vendors from a YAML list of {company_name, website} entries. Re-importing updates existing rows.",
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

		f, err := os.Open(importFilePath)
		if err != nil {
			return eris.Wrap(err, "open seed file")
		}
		defer f.Close() //nolint:errcheck

		vendors, err := readVendorSeed(f)
		if err != nil {
			return err
		}

		n, err := st.ImportVendors(ctx, vendors)
		if err != nil {
			return eris.Wrap(err, "import vendors")
		}

		zap.L().Info("import complete",
			zap.Int64("written", n),
			zap.String("file", importFilePath),
		)
		return nil
	},
}

// readVendorSeed parses a YAML list of vendors. Entries without a company
// name are skipped; imported vendors default to active.
func readVendorSeed(r io.Reader) ([]model.Vendor, error) {
	var entries []struct {
		CompanyName string `yaml:"company_name"`
		Website     string `yaml:"website"`
		IsActive    *bool  `yaml:"is_active"`
	}
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&entries); err != nil {
		return nil, eris.Wrap(err, "decode vendor seed")
	}

	var vendors []model.Vendor
	for _, e := range entries {
		name := strings.TrimSpace(e.CompanyName)
		if name == "" {
			continue
		}
		v := model.Vendor{
			CompanyName: name,
			Website:     strings.TrimSpace(e.Website),
			IsActive:    true,
		}
		if e.IsActive != nil {
			v.IsActive = *e.IsActive
		}
		vendors = append(vendors, v)
	}
	return vendors, nil
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to YAML seed file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
