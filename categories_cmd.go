package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/ytput/ytput/internal/categories"
)

var flagCategoriesRefresh bool

func newCategoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List video categories for the configured region",
		Long: `List the category names accepted by the upload command. The table is
cached for a week; --refresh forces a fetch from the API.`,
		Args: cobra.NoArgs,
		RunE: runCategories,
	}

	cmd.Flags().BoolVar(&flagCategoriesRefresh, "refresh", false, "fetch a fresh category list from the API")

	return cmd
}

func runCategories(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := cmd.Context()
	region := resolvedCfg.Region

	cache := categories.NewCache(resolvedCfg.CategoryCache)

	var cats map[string]string

	if flagCategoriesRefresh || !cache.Fresh(region) {
		client, err := apiClient(ctx)
		if err != nil {
			// Not logged in yet: show the fallback table rather than failing,
			// except when a refresh was explicitly requested.
			if flagCategoriesRefresh {
				return err
			}

			logger.Debug("category refresh unavailable, using cached table", "error", err)
			cats = cache.Load(region)
		} else {
			fetched, fetchErr := client.Categories(ctx, region)
			if fetchErr != nil {
				if flagCategoriesRefresh {
					return fetchErr
				}

				logger.Warn("fetching categories failed, using cached table", "error", fetchErr)
				cats = cache.Load(region)
			} else {
				if storeErr := cache.Store(region, fetched); storeErr != nil {
					logger.Warn("caching categories failed", "error", storeErr)
				}

				cats = fetched
			}
		}
	} else {
		cats = cache.Load(region)
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(cats)
	}

	rows := make([][]string, 0, len(cats))
	for _, name := range categories.Names(cats) {
		rows = append(rows, []string{cats[name], name})
	}

	printTable(os.Stdout, []string{"ID", "CATEGORY"}, rows)

	return nil
}
