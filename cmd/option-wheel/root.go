package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/contactkeval/option-wheel/internal/config"
	"github.com/contactkeval/option-wheel/internal/logger"
)

// app holds state shared by subcommands once flags are parsed.
type app struct {
	v   *viper.Viper
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:   "option-wheel",
		Short: "Backtest the options wheel strategy",
		Long: `option-wheel simulates selling weekly cash-secured puts and covered calls
over historical daily prices, one contract at a time.

Configuration is read from an optional file (--config), WHEEL_* environment
variables and flags, flags winning.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, cfgPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger.Init(logger.Config{
				Verbosity:  cfg.Log.Verbosity,
				File:       cfg.Log.File,
				MaxSizeMB:  cfg.Log.MaxSizeMB,
				MaxBackups: cfg.Log.MaxBackups,
				MaxAgeDays: cfg.Log.MaxAgeDays,
			})
			a.cfg = cfg
			return nil
		},
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgPath, "config", "", "config file (JSON, TOML or YAML)")
	flags.Int("verbosity", 1, "log verbosity: 0=errors, 1=info, 2=debug, 3=trace")
	flags.String("log-file", "", "also write logs to this rotating file")
	flags.String("provider", "synthetic", "price provider: synthetic, massive or csv")
	flags.String("store", "memory", "run store driver: memory, sqlite or postgres")
	flags.String("dsn", "", "run store DSN (sqlite path or postgres URL)")
	a.bind(flags.Lookup("verbosity"), "log.verbosity")
	a.bind(flags.Lookup("log-file"), "log.file")
	a.bind(flags.Lookup("provider"), "data.provider")
	a.bind(flags.Lookup("store"), "store.driver")
	a.bind(flags.Lookup("dsn"), "store.dsn")

	rootCmd.AddCommand(newBacktestCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newRunsCmd(a))
	return rootCmd
}
