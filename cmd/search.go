package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search products by name across all providers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		res, cleanup, err := buildResolver()
		if err != nil {
			return err
		}
		defer cleanup()

		results, err := res.ResolveByName(context.Background(), strings.Join(args, " "), limit)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No results.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tBRAND\tGRADE\tKCAL/100G\tID\t")
		for _, p := range results {
			kcal := "-"
			if p.Calories != nil {
				kcal = fmt.Sprintf("%.0f", *p.Calories)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", p.Name, p.Brand, p.NutriGrade, kcal, p.ID)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntP("limit", "n", 20, "Maximum number of results")
}
