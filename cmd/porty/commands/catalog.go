package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/L1nMay/porty/internal/catalog"
	"github.com/L1nMay/porty/internal/config"
	"github.com/L1nMay/porty/internal/storage"
)

func newCatalogCommand(getCfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the well-known port catalog",
	}
	cmd.AddCommand(newCatalogImportCommand(getCfg), newCatalogListCommand(getCfg))
	return cmd
}

func newCatalogImportCommand(getCfg func() *config.Config) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "import <catalog.yaml>",
		Short: "Load a YAML catalog into the bolt or postgres store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getCfg()
			specs, err := catalog.NewFile(args[0]).Load(cmd.Context())
			if err != nil {
				return err
			}

			switch to {
			case config.SourceBolt:
				if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
					return fmt.Errorf("create db dir: %w", err)
				}
				store, err := storage.NewCatalogStore(cfg.DBPath)
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.Import(specs, args[0]); err != nil {
					return err
				}
			case config.SourcePostgres:
				if cfg.Database.DSN == "" {
					return fmt.Errorf("postgres import needs --dsn or database.dsn")
				}
				pg, err := storage.NewPostgres(cfg.Database.DSN)
				if err != nil {
					return err
				}
				defer pg.Close()
				if err := pg.Migrate(); err != nil {
					return fmt.Errorf("migrations failed: %w", err)
				}
				if err := pg.ReplaceCatalog(cmd.Context(), specs); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown import target %q", to)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d ports into %s\n", len(specs), to)
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", config.SourceBolt, "destination: bolt or postgres")
	return cmd
}

func newCatalogListCommand(getCfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the active catalog as YAML; bolt stores also show their import origin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, closeFn, err := openCatalog(getCfg())
			if err != nil {
				return err
			}
			defer closeFn()

			specs, err := src.Load(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if store, ok := src.(*storage.CatalogStore); ok {
				info, err := store.Info()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "# %d entries imported from %s at %s\n",
					info.Entries, info.Origin, info.ImportedAt.Format(time.RFC3339))
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(catalog.Document{Ports: specs})
		},
	}
}
