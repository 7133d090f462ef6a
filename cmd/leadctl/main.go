// Package main provides the leadctl command-line tool.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFile string
	verbose bool
	logger  *zap.Logger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "leadctl",
		Short:   "Maintain the Lead blood group variant database",
		Version: fmt.Sprintf("%s (%s) built %s", version, commit, date),
		Long: `leadctl annotates variant records in the Lead blood group database with
data from external bioinformatics services (VariantValidator, gnomAD,
dbSNP) and exports per-system allele reports.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = buildLogger(verbose)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}
			return initConfig(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "config.json",
		"Path to configuration JSON file")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")
	cmd.PersistentFlags().String("url", "", "Base URL of the Lead API (overrides config file)")
	cmd.PersistentFlags().String("email", "", "Email for authentication (overrides config file)")
	cmd.PersistentFlags().String("password", "", "Password for authentication (overrides config file)")

	cmd.AddCommand(newAnnotateCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// initConfig wires viper: config file values, LEADCTL_* environment
// variables, and command-line overrides, in increasing precedence.
func initConfig(cmd *cobra.Command) error {
	viper.SetEnvPrefix("leadctl")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	flags := cmd.Root().PersistentFlags()
	if err := viper.BindPFlag("lead_url", flags.Lookup("url")); err != nil {
		return err
	}
	if err := viper.BindPFlag("email", flags.Lookup("email")); err != nil {
		return err
	}
	if err := viper.BindPFlag("password", flags.Lookup("password")); err != nil {
		return err
	}

	viper.SetConfigFile(cfgFile)
	viper.SetConfigType("json")
	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine when credentials arrive via flags or
		// environment; credentials() reports what is still missing.
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("read config %s: %w", cfgFile, err)
			}
		}
		logger.Debug("config file not found, relying on flags and environment",
			zap.String("path", cfgFile))
	} else {
		logger.Info("loaded configuration", zap.String("path", cfgFile))
	}

	return nil
}

// credentials resolves the Lead API endpoint and login from viper.
func credentials() (url, email, password string, err error) {
	url = viper.GetString("lead_url")
	email = viper.GetString("email")
	password = viper.GetString("password")

	var missing []string
	if url == "" {
		missing = append(missing, "lead_url")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return "", "", "", fmt.Errorf(
			"missing configuration: %s (provide %s in the config file or via --url/--email/--password)",
			strings.Join(missing, ", "), strings.Join(missing, ", "))
	}
	return url, email, password, nil
}

// buildLogger creates a console logger writing to stderr, debug level when
// verbose is set.
func buildLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.OutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}
