package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/L1nMay/porty/internal/catalog"
	"github.com/L1nMay/porty/internal/config"
	"github.com/L1nMay/porty/internal/logger"
	"github.com/L1nMay/porty/internal/storage"
)

const (
	cliExecutable     = "porty"
	defaultConfigFile = "porty.yaml"
)

type globalOptions struct {
	configFile    string
	logLevel      string
	catalogPath   string
	catalogSource string
	dbPath        string
	dsn           string
}

// NewCommand builds the porty command tree. The root command is the scan.
func NewCommand() *cobra.Command {
	var (
		opts globalOptions
		cfg  *config.Config
	)

	cmd := &cobra.Command{
		Use:           cliExecutable + " [target] [start-port] [end-port]",
		Short:         "TCP connect-scan a host over a port range or the well-known port catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			cfg = loaded
			logger.SetLevel(cfg.LogLevel)
			return cfg.Validate()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default "+defaultConfigFile+" if present)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&opts.catalogPath, "catalog", "", "YAML port catalog used when no range is given")
	pf.StringVar(&opts.catalogSource, "catalog-source", "", "catalog backend: file, bolt, postgres")
	pf.StringVar(&opts.dbPath, "db", "", "bbolt catalog store path")
	pf.StringVar(&opts.dsn, "dsn", "", "postgres DSN for the postgres catalog backend")

	getCfg := func() *config.Config { return cfg }
	bindScan(cmd, getCfg)
	cmd.AddCommand(newServeCommand(getCfg))
	cmd.AddCommand(newCatalogCommand(getCfg))

	return cmd
}

// loadConfig reads an explicit --config strictly, the default file only if
// it exists, then applies persistent flag overrides.
func loadConfig(cmd *cobra.Command, opts globalOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case opts.configFile != "":
		cfg, err = config.LoadConfig(opts.configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	default:
		cfg, err = config.LoadConfig(defaultConfigFile)
		if errors.Is(err, fs.ErrNotExist) {
			cfg, err = config.Default(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("catalog") {
		cfg.CatalogPath = opts.catalogPath
	}
	if flags.Changed("catalog-source") {
		cfg.CatalogSource = opts.catalogSource
	}
	if flags.Changed("db") {
		cfg.DBPath = opts.dbPath
	}
	if flags.Changed("dsn") {
		cfg.Database.DSN = opts.dsn
	}
	return cfg, nil
}

// openCatalog returns the configured catalog source and a function that
// releases it.
func openCatalog(cfg *config.Config) (catalog.Source, func(), error) {
	switch cfg.CatalogSource {
	case config.SourceBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, nil, fmt.Errorf("create db dir: %w", err)
		}
		store, err := storage.NewCatalogStore(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open catalog store %s: %w", cfg.DBPath, err)
		}
		return store, func() { _ = store.Close() }, nil
	case config.SourcePostgres:
		pg, err := storage.NewPostgres(cfg.Database.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return pg, func() { _ = pg.Close() }, nil
	default:
		return catalog.NewFile(cfg.CatalogPath), func() {}, nil
	}
}
