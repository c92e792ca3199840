package main

import (
	"fmt"
	"net/http"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sproutwatch/sproutwatch/pkg/models"
)

func newProfilesCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List and select plant profiles",
	}
	cmd.AddCommand(newProfilesListCmd(opts))
	cmd.AddCommand(newProfilesUseCmd(opts))
	return cmd
}

func newProfilesListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the plant catalog and mark the active profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := newAPIClient(opts)
			var catalog []models.PlantProfile
			if err := c.call(cmd.Context(), http.MethodGet, "/api/v1/profiles", nil, &catalog); err != nil {
				return err
			}
			var active models.PlantProfile
			if err := c.call(cmd.Context(), http.MethodGet, "/api/v1/profiles/active", nil, &active); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tID\tNAME\tTEMP °C\tHUMIDITY %\tWATER %")
			for _, p := range catalog {
				mark := ""
				if p.ID == active.ID {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d-%d\t%d-%d\t%d\n", mark, p.ID, p.Name, p.TempMin, p.TempMax, p.HumidityMin, p.HumidityMax, p.WaterLevel)
			}
			if !containsProfile(catalog, active.ID) {
				fmt.Fprintf(tw, "*\t%s\t%s\t%d-%d\t%d-%d\t%d\n", active.ID, active.Name, active.TempMin, active.TempMax, active.HumidityMin, active.HumidityMax, active.WaterLevel)
			}
			return tw.Flush()
		},
	}
}

func newProfilesUseCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Switch monitoring to a catalog profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p models.PlantProfile
			body := map[string]string{"id": args[0]}
			if err := newAPIClient(opts).call(cmd.Context(), http.MethodPut, "/api/v1/profiles/active", body, &p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Monitoring switched to %s %s\n", p.Icon, p.Name)
			return nil
		},
	}
}

func containsProfile(list []models.PlantProfile, id string) bool {
	for _, p := range list {
		if p.ID == id {
			return true
		}
	}
	return false
}
