// Package main provides the admin CLI for the feedback service.
package main

import (
	"context"
	"fmt"
	"os"

	"feedbackapp/cmd/adm/commands"
	"feedbackapp/internal/config"
	"feedbackapp/internal/observability"
	"feedbackapp/internal/version"

	"github.com/spf13/cobra"
)

func main() {
	ctx := context.Background()

	// Set default config file if not already set
	if os.Getenv(config.ConfigFileEnvVar) == "" {
		defaultPaths := []string{
			"../../" + config.DefaultConfigFile, // From cmd/adm/
			config.DefaultConfigFile,            // Current directory
		}

		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				if err := os.Setenv(config.ConfigFileEnvVar, path); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to set %s environment variable: %v\n", config.ConfigFileEnvVar, err)
					os.Exit(1)
				}
				break
			}
		}
	}

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Override log level for admin tool
	cfg.Server.LogLevel = "error"

	// Disable all OpenTelemetry features for admin CLI to avoid connection errors
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	_, _, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "feedback-admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:     "adm",
		Short:   "Feedback Service Administration Tool",
		Version: version.String(),
		Long: `Feedback Service Administration Tool

Inspect stored feedback: probe the MongoDB primary, compute rating statistics
and validate the JSON fallback file.`,

		Run: func(cmd *cobra.Command, _ []string) {
			// Show help if no subcommand provided
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.RecordsCommands(cfg, logger))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
