package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List all stored companies",
	Long:  "Reads the store and prints a table of every company accepted by the classifier.",
	RunE:  runCompanies,
}

func init() {
	rootCmd.AddCommand(companiesCmd)
}

func runCompanies(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	companies, err := a.store.Companies(ctx)
	if err != nil {
		return fmt.Errorf("listing companies: %w", err)
	}

	fmt.Printf("%-25s %-30s %s\n", "Company", "Domain", "Added")
	fmt.Println(strings.Repeat("─", 67))
	for _, c := range companies {
		fmt.Printf("%-25s %-30s %s\n", c.Name, c.Domain, c.CreatedAt.Format("2006-01-02"))
	}

	fmt.Printf("\nTotal: %d companies\n", len(companies))
	return nil
}
