package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	return buildRootCommand(newCommandContext(&globalOptions{}))
}

func buildRootCommand(ctx *commandContext) *cobra.Command {
	opts := ctx.opts

	rootCmd := &cobra.Command{
		Use:           "picksy",
		Short:         "Picksy library client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			ctx.startTelemetry(cmd.Context())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.stopTelemetry()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Configuration file path")
	flags.StringVar(&opts.hostURL, "host", "", "Host websocket URL (overrides bridge.hostUrl)")
	flags.StringVar(&opts.apiKey, "api-key", "", "Host API key (overrides API_KEY)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Per-command timeout (overrides bridge.commandTimeout)")
	flags.BoolVar(&opts.json, "json", false, "Print JSON instead of tables")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log bridge activity to stderr")

	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newGalleryCommand(ctx))
	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newAddCommand(ctx))
	rootCmd.AddCommand(newRemoveCommand(ctx))
	rootCmd.AddCommand(newClearCommand(ctx))
	rootCmd.AddCommand(newFavoriteCommand(ctx))
	rootCmd.AddCommand(newStackCommand(ctx))
	rootCmd.AddCommand(newUnstackCommand(ctx))
	rootCmd.AddCommand(newPrimaryCommand(ctx))
	rootCmd.AddCommand(newAutoStackCommand(ctx))
	rootCmd.AddCommand(newPresenceCommand(ctx))
	rootCmd.AddCommand(newMetadataCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newEditCommand(ctx))
	rootCmd.AddCommand(newFullResCommand(ctx))

	return rootCmd
}
