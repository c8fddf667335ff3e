package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"label-resolver/internal/alias"
	"label-resolver/internal/catalog"
	"label-resolver/internal/resolve/service"
)

var aliasCmd = &cobra.Command{
	Use:   "alias <phrase> <item-id>",
	Short: "Bind a phrase to a catalog item",
	Long:  "Stores the normalized phrase for the tenant. An existing binding is kept as is.",
	Args:  cobra.ExactArgs(2),
	RunE:  runAlias,
}

func runAlias(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger()
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	cache := catalog.NewCache(db, logger)
	items, err := cache.GetItems(ctx, tenantID)
	if err != nil {
		return err
	}
	known := false
	for _, it := range items {
		if it.ID == args[1] {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("item %q is not in the catalog of tenant %s", args[1], tenantID)
	}

	store := alias.NewStore(db, cache, logger)
	created, err := store.Save(ctx, tenantID, args[0], args[1])
	if err != nil {
		return err
	}
	if !created {
		fmt.Printf("%q already bound, unchanged\n", service.Normalize(args[0]))
		return nil
	}
	fmt.Printf("%q -> %s\n", service.Normalize(args[0]), args[1])
	return nil
}
