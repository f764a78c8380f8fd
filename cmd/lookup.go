package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// lookupCmd represents the lookup command
var lookupCmd = &cobra.Command{
	Use:   "lookup <barcode>",
	Short: "Resolve a product by barcode",
	Long: `Resolve a product by barcode: local cache first, then the configured
providers in priority order. The result is printed as JSON and cached.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, cleanup, err := buildResolver()
		if err != nil {
			return err
		}
		defer cleanup()

		p, err := res.ResolveByBarcode(context.Background(), args[0])
		if err != nil {
			return err
		}
		if p == nil {
			fmt.Println("No product matches this barcode.")
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}
