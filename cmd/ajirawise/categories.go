package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/ajirawise/internal/catalog"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the job categories",
	Long:  "Prints the menu categories with the search terms sent to the job boards.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%-3s %-30s %s\n", "#", "Category", "Board queries")
		fmt.Println(strings.Repeat("─", 72))
		for i, c := range catalog.Categories {
			fmt.Printf("%-3d %-30s %s\n", i+1, c, strings.Join(catalog.PrimaryTerms(c, 3), ", "))
		}
		fmt.Printf("\nTotal: %d categories\n", len(catalog.Categories))
	},
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
}
