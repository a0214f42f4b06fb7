// Package app provides the entry point for the ssobridge command-line application.
package app

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ssobridge/ssobridge/pkg/config"
	"github.com/ssobridge/ssobridge/pkg/logger"
)

// Version is set at build time with -ldflags "-X ...app.Version=<version>".
var Version = "dev"

// NewRootCmd creates a new root command for the ssobridge CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "ssobridge",
		DisableAutoGenTag: true,
		Short:             "Single sign-on bridge for the workflow engine",
		Long: `ssobridge lets the workflow engine's web applications and REST API trust an
OpenID Connect provider. Browser users log in with the authorization code flow;
API callers present bearer tokens. In both cases the caller's roles are read
from the token's realm_access and resource_access claims and granted as
ROLE_ authorities, and the engine's identity directory is answered read-only
from the caller's own claims.`,
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				logger.Errorf("Error displaying help: %v", err)
			}
		},
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.Initialize()
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	bindFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the ssobridge configuration file")
	bindFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newValidateCmd())

	// Silence printing the usage on error
	rootCmd.SilenceUsage = true

	return rootCmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bridge",
		Long: `Start the bridge. The configuration is read from the file given with --config
and from SSOBRIDGE_* environment variables. The login registration's issuer is
discovered at startup; signing keys are fetched on first use.`,
		RunE: runServe,
	}

	cmd.Flags().String("address", "", "Address to listen on (overrides server.address)")
	bindFlag("server.address", cmd.Flags().Lookup("address"))
	return cmd
}

func bindFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		logger.Errorf("Error binding %s flag: %v", flag.Name, err)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ssobridge %s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Long: `Validate the configuration without contacting any identity provider.

This command checks:
- YAML syntax validity
- The web application role and login registration are set
- Every registration can be discovered or has a key set URL`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "✓ Configuration is valid")
			fmt.Fprintf(out, "  Web application role: %s\n", cfg.WebAppRole)
			fmt.Fprintf(out, "  Login registration: %s\n", cfg.Registration)
			fmt.Fprintf(out, "  Resource server registration: %s\n", cfg.ResourceServer)
			fmt.Fprintf(out, "  Registrations: %d\n", len(cfg.Registrations))
			return nil
		},
	}
}

// loadConfig reads and validates the configuration named by --config.
func loadConfig() (*config.Config, error) {
	configPath := viper.GetString("config")
	if configPath != "" {
		logger.Infof("Loading configuration from: %s", configPath)
	}

	cfg, err := config.Load(viper.GetViper(), configPath)
	if err != nil {
		return nil, fmt.Errorf("configuration loading failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}
