package main

import (
	"fmt"
	"os"
	"time"

	"vertable/internal/config"
	"vertable/internal/confluence"
	"vertable/internal/updater"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	cfgFile  string
	baseURL  string
	pageID   string
	username string
	apiToken string
	timeout  time.Duration
	verbose  bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "vertable",
	Short: "vertable - update a deployment version table on Confluence",
	Long: `vertable sets the version recorded for a component/environment pair in
a table on a Confluence wiki page, driven by CI inputs.

It fetches the page's storage-format body, locates the cell where the
component column meets the environment row, replaces the version text, and
pushes the body back with the page version number incremented by one.

Connection settings come from flags, the environment (CONFLUENCE_BASE_URL,
CONFLUENCE_PAGE_ID, ATLASSIAN_USERNAME, ATLASSIAN_API_TOKEN), or a config
file, in that order of precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger. Config-file logging settings apply when
		// readable; --verbose always wins.
		zcfg := zap.NewProductionConfig()
		if cfg, err := config.Load(cfgFile); err == nil {
			if lvl, lerr := zapcore.ParseLevel(cfg.Logging.Level); lerr == nil {
				zcfg.Level = zap.NewAtomicLevelAt(lvl)
			}
			if cfg.Logging.Format == "console" {
				zcfg.Encoding = "console"
			}
		}
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		// One correlation ID per invocation so CI log collectors can
		// stitch the run together.
		logger = logger.With(zap.String("run_id", uuid.NewString()))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "vertable.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Confluence base URL (e.g. https://example.atlassian.net/wiki)")
	rootCmd.PersistentFlags().StringVar(&pageID, "page-id", "", "Confluence page ID holding the version table")
	rootCmd.PersistentFlags().StringVar(&username, "user", "", "Atlassian username (email)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "Atlassian API token")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "request timeout (default from config, 30s)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(getCmd)
}

// loadConfig resolves configuration with flags taking precedence over the
// environment and the config file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := rootCmd.PersistentFlags()
	if flags.Changed("base-url") {
		cfg.Confluence.BaseURL = baseURL
	}
	if flags.Changed("page-id") {
		cfg.Confluence.PageID = pageID
	}
	if flags.Changed("user") {
		cfg.Confluence.Username = username
	}
	if flags.Changed("token") {
		cfg.Confluence.APIToken = apiToken
	}
	if flags.Changed("timeout") {
		cfg.Confluence.Timeout = timeout.String()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newUpdater builds the updater stack from resolved configuration.
func newUpdater(cfg *config.Config) *updater.Updater {
	client := confluence.NewClientWithConfig(confluence.ClientConfig{
		BaseURL:  cfg.Confluence.BaseURL,
		Username: cfg.Confluence.Username,
		APIToken: cfg.Confluence.APIToken,
		Timeout:  cfg.GetRequestTimeout(),
		Logger:   logger,
	})
	return updater.New(client, logger)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
