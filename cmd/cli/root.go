package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/flowbaker/triage/internal/initialization"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "triage",
		Short: "Support ticket triage CLI",
		Long: `Triage classifies customer support tickets with a language model, routes them
to the responsible team and reports what each classification cost.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewClassifyCommand())
	rootCmd.AddCommand(NewHealthCommand())
	rootCmd.AddCommand(NewCostsCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// loadConfig reads the configuration and applies the log level. --debug wins
// over LOG_LEVEL.
func loadConfig(cmd *cobra.Command) (*initialization.Config, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	config, err := initialization.LoadConfig()
	if err != nil {
		return nil, err
	}

	if !debug && config.LogLevel != "" {
		level, err := zerolog.ParseLevel(config.LogLevel)
		if err != nil {
			log.Warn().Str("log_level", config.LogLevel).Msg("Unknown log level, keeping info")
			level = zerolog.InfoLevel
		}

		zerolog.SetGlobalLevel(level)
	}

	return config, nil
}

func buildContainer(ctx context.Context, cmd *cobra.Command) (*initialization.Container, error) {
	config, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	container, err := initialization.NewContainer(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to build triage dependencies: %w", err)
	}

	return container, nil
}

// Execute runs the root command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
