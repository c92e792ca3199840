package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	Server string
	APIKey string
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	cmd := &cobra.Command{
		Use:           "sproutctl",
		Short:         "Command line client for the SproutWatch Command Center",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Server, "server", envOr("SPROUTWATCH_SERVER", "http://localhost:8080"), "Command Center base URL")
	cmd.PersistentFlags().StringVar(&opts.APIKey, "api-key", os.Getenv("SPROUTWATCH_API_KEY"), "API key sent as a bearer token")

	cmd.AddCommand(newProfilesCmd(&opts))
	cmd.AddCommand(newDashboardCmd(&opts))
	cmd.AddCommand(newActivityCmd(&opts))
	cmd.AddCommand(newWaterCmd(&opts))
	cmd.AddCommand(newLightCmd(&opts))
	cmd.AddCommand(newProbeCmd(&opts))
	cmd.AddCommand(newChatCmd(&opts))
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
