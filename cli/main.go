package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/projectcloudline/loss-assessment-service/internal/config"
	"github.com/projectcloudline/loss-assessment-service/internal/oracle"
)

var (
	envFile string
	backend string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:           "loss-assessment",
	Short:         "Assess damage photos from the command line",
	Long:          `Runs the loss assessment pipeline locally: analyze damage photos into a report, then chat about it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
		config.SetupLogging(config.LogCLI, os.Stderr)

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if backend != "" {
			b, err := oracle.ParseBackend(backend)
			if err != nil {
				return err
			}
			loaded.Backend = b
			if loaded.Fallback == b {
				loaded.Fallback = ""
			}
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with API keys and settings")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "vision backend: gemini, openrouter or anthropic (overrides ORACLE_BACKEND)")
	rootCmd.AddCommand(analyzeCmd, chatCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
