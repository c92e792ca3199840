package main

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sproutwatch/sproutwatch/pkg/models"
)

func newDashboardCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the current climate against the active profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var snap models.DashboardSnapshot
			if err := newAPIClient(opts).call(cmd.Context(), http.MethodGet, "/api/v1/dashboard", nil, &snap); err != nil {
				return err
			}
			printDashboard(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func printDashboard(w io.Writer, snap models.DashboardSnapshot) {
	fmt.Fprintf(w, "%s %s\n", snap.Profile.Icon, snap.Profile.Name)
	if snap.Online {
		fmt.Fprintf(w, "Device online, last update %s\n", snap.LastUpdate)
	} else {
		reason := "no reading yet"
		if snap.Error != nil {
			reason = *snap.Error
		}
		fmt.Fprintf(w, "Device offline (%s)\n", reason)
	}
	for _, card := range []models.MetricCard{snap.Temperature, snap.Humidity} {
		value := "--"
		if card.Value != nil {
			value = strconv.FormatFloat(*card.Value, 'f', 1, 64)
		}
		fmt.Fprintf(w, "%-12s %6s%-2s  [%d-%d]  %-8s %3.0f%%\n", card.Label, value, card.Unit, card.Min, card.Max, card.Status, card.Progress)
	}
	light := "OFF"
	if snap.LightOn {
		light = "ON"
	}
	fmt.Fprintf(w, "Grow light   %s\n", light)
}

func newActivityCmd(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent garden activity, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/v1/activity"
			if limit > 0 {
				path += "?limit=" + strconv.Itoa(limit)
			}
			var entries []models.ActivityEntry
			if err := newAPIClient(opts).call(cmd.Context(), http.MethodGet, path, nil, &entries); err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", e.Timestamp.Local().Format("15:04:05"), e.Message)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of entries to show (0 for all)")
	return cmd
}

func newWaterCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "water",
		Short: "Start a watering cycle for the active plant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var entry models.ActivityEntry
			if err := newAPIClient(opts).call(cmd.Context(), http.MethodPost, "/api/v1/actions/water", nil, &entry); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), entry.Message)
			return nil
		},
	}
}

func newLightCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "light",
		Short: "Toggle the grow light",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out struct {
				LightOn  bool                 `json:"light_on"`
				Activity models.ActivityEntry `json:"activity"`
			}
			if err := newAPIClient(opts).call(cmd.Context(), http.MethodPost, "/api/v1/actions/light", nil, &out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Activity.Message)
			return nil
		},
	}
}

func newProbeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe [url]",
		Short: "Check that the sensor device answers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body interface{}
			if len(args) == 1 {
				body = map[string]string{"url": args[0]}
			}
			var res models.ProbeResult
			if err := newAPIClient(opts).call(cmd.Context(), http.MethodPost, "/api/v1/probe", body, &res); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", res.Status, res.Message)
			fmt.Fprintln(out, res.Description)
			if res.LatencyMs != nil {
				fmt.Fprintf(out, "Latency %dms, %s\n", *res.LatencyMs, res.LatencyNote)
			}
			return nil
		},
	}
}
