package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"label-resolver/internal/fileio"
)

var importHeaderRow int

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load a catalog spreadsheet into the database",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().IntVar(&importHeaderRow, "header-row", 1, "1-based header row")
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	items, err := fileio.ReadCatalog(f, args[0], importHeaderRow)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	if len(items) == 0 {
		return fmt.Errorf("%s: no printable items", args[0])
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	if err := db.SaveItems(cmd.Context(), tenantID, items); err != nil {
		return err
	}
	fmt.Printf("imported %d items for tenant %s\n", len(items), tenantID)
	return nil
}
