package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"git.sr.ht/~jakintosh/authclient/internal/config"
	"git.sr.ht/~jakintosh/authclient/pkg/client"
	"git.sr.ht/~jakintosh/authclient/pkg/session"
	"git.sr.ht/~jakintosh/authclient/pkg/store"
)

type contextKey string

const cliContextKey contextKey = "cliContext"

// CliContext holds what every subcommand works with
type CliContext struct {
	ConfigPath string
	Config     *config.Config
	Store      store.TokenStore
	Client     *client.Client
	Session    *session.Session

	closeStore func() error
}

type rootFlags struct {
	configPath string
	baseURL    string
	storeKind  string
	storePath  string
	logLevel   string
}

// NewRootCommand creates the root cobra command
func NewRootCommand() *cobra.Command {
	var flags rootFlags
	var cliCtx CliContext

	rootCmd := &cobra.Command{
		Use:           "authclient",
		Short:         "Call a bearer-token API with automatic token refresh",
		Long:          `A command line client that signs in to an API, keeps the session tokens in a store, and refreshes them when they expire.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			cliCtx.Config = cfg
			cliCtx.ConfigPath = path

			// config commands only touch the file
			if cmd.Name() == "config" || (cmd.Parent() != nil && cmd.Parent().Name() == "config") {
				cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey, &cliCtx))
				return nil
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if err := connect(cmd, &cliCtx); err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey, &cliCtx))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if cliCtx.closeStore != nil {
				return cliCtx.closeStore()
			}
			return nil
		},
	}

	rootCmd.AddCommand(newSignInCommand())
	rootCmd.AddCommand(newSignOutCommand())
	rootCmd.AddCommand(newWhoAmICommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newRequestCommand())
	rootCmd.AddCommand(newConfigCommand())

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Config file path (default $AUTHCLIENT_CONFIG or the user config dir)")
	pf.StringVar(&flags.baseURL, "base-url", "", "API base URL")
	pf.StringVar(&flags.storeKind, "store", "", "Token store (memory, file, sqlite, redis)")
	pf.StringVar(&flags.storePath, "store-path", "", "Token file or database path")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (none, error, info, debug)")

	return rootCmd
}

// loadConfig layers the config file, the environment and the flags.
func loadConfig(cmd *cobra.Command, flags rootFlags) (*config.Config, string, error) {
	path := flags.configPath
	if path == "" {
		var err error
		if path, err = config.Path(); err != nil {
			return nil, "", err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnv(os.Getenv)

	pf := cmd.Flags()
	if pf.Changed("base-url") {
		cfg.BaseURL = flags.baseURL
	}
	if pf.Changed("store") {
		cfg.Store.Kind = flags.storeKind
	}
	if pf.Changed("store-path") {
		cfg.Store.Path = flags.storePath
	}
	if pf.Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	return cfg, path, nil
}

func connect(cmd *cobra.Command, cliCtx *CliContext) error {
	cfg := cliCtx.Config
	level, err := client.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	tokenStore, closeStore, err := store.Open(cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}

	stderr := cmd.ErrOrStderr()
	c, err := client.New(cmd.Context(), client.Config{
		BaseURL:        cfg.BaseURL,
		Store:          tokenStore,
		Timeout:        cfg.Timeout,
		RefreshTimeout: cfg.RefreshTimeout,
		LogLevel:       level,
		Logger:         log.New(stderr, "authclient: ", log.LstdFlags),
		Navigator: client.NavigatorFunc(func(route string) {
			if route == client.DefaultSignedOutRoute {
				fmt.Fprintln(stderr, "Signed out.")
			}
		}),
	})
	if err != nil {
		closeStore()
		return err
	}

	cliCtx.Store = tokenStore
	cliCtx.Client = c
	cliCtx.Session = session.New(c, session.Config{})
	cliCtx.closeStore = closeStore
	return nil
}

// getCliContext extracts the CLI context from the command context
func getCliContext(cmd *cobra.Command) *CliContext {
	return cmd.Context().Value(cliContextKey).(*CliContext)
}
