package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"label-resolver/internal/alias"
	"label-resolver/internal/catalog"
	"label-resolver/internal/common"
	"label-resolver/internal/fileio"
	"label-resolver/internal/resolve/model"
	"label-resolver/internal/resolve/service"
)

var (
	resolveCatalog string
	resolveLang    string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <text>",
	Short: "Resolve order text to catalog items",
	Long: "Segments the text, resolves each segment and prints entries with the aggregate score.\n" +
		"With --catalog the spreadsheet is the catalog and no aliases are used.",
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveCatalog, "catalog", "", "Catalog spreadsheet (.csv/.xls/.xlsx) instead of the database")
	resolveCmd.Flags().StringVar(&resolveLang, "lang", service.DefaultLanguage, "Cardinal word vocabulary (pt, en)")
}

type resolveOutput struct {
	Entries   []model.ResolvedEntry `json:"entries"`
	Aggregate model.Aggregate       `json:"aggregate"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger()
	text := strings.Join(args, " ")

	var (
		cache  *catalog.Cache
		lookup service.AliasLookup
	)
	if resolveCatalog != "" {
		cache = catalog.NewCache(fileio.CatalogFile{TenantID: tenantID, Path: resolveCatalog}, logger)
	} else {
		db, err := openDB()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()
		cache = catalog.NewCache(db, logger)
		lookup = alias.NewStore(db, cache, logger)
	}
	resolver := service.NewResolver(cache, lookup, logger)

	segs := service.NewSegmenter(resolveLang).Segment(text)
	if len(segs) == 0 {
		return common.InvalidInput(common.NoValidItems)
	}
	entries, err := resolver.ResolveAll(ctx, segs, tenantID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resolveOutput{Entries: entries, Aggregate: service.Aggregate(entries)})
}
