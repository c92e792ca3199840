package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sproutwatch/sproutwatch/internal/stream"
	"github.com/sproutwatch/sproutwatch/pkg/models"
)

func newChatCmd(opts *globalOptions) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Ask the gardening assistant and stream its reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newAPIClient(opts)
			if reset {
				if err := c.call(cmd.Context(), http.MethodDelete, "/api/v1/chat/messages", nil, nil); err != nil {
					return err
				}
			}

			body := map[string]string{"message": strings.Join(args, " ")}
			resp, err := c.do(cmd.Context(), http.MethodPost, "/api/v1/chat", body)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			return printChatStream(cmd.OutOrStdout(), resp.Body)
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "clear the conversation before sending")
	return cmd
}

// printChatStream writes reply text as it arrives, then any profile change
// and notices the server attached to the turn.
func printChatStream(w io.Writer, r io.Reader) error {
	dec := stream.NewDecoder()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	event := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			event = ""
			continue
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}

		if event == "" {
			res := dec.Feed([]byte(line + "\n"))
			fmt.Fprint(w, res.Delta)
			if res.Done {
				fmt.Fprintln(w)
				return nil
			}
			continue
		}

		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		if err := printNamedEvent(w, event, []byte(strings.TrimSpace(data))); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	fmt.Fprint(w, dec.Flush().Delta)
	fmt.Fprintln(w)
	return nil
}

func printNamedEvent(w io.Writer, event string, data []byte) error {
	switch event {
	case "profile":
		var p models.PlantProfile
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode profile event: %w", err)
		}
		fmt.Fprintf(w, "\n%s Now monitoring %s (%d-%d °C, %d-%d %%)\n", p.Icon, p.Name, p.TempMin, p.TempMax, p.HumidityMin, p.HumidityMax)
	case "notice":
		var n models.Notice
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("decode notice event: %w", err)
		}
		fmt.Fprintf(w, "\n[%s] %s", n.Level, n.Title)
		if n.Description != "" {
			fmt.Fprintf(w, ": %s", n.Description)
		}
		fmt.Fprintln(w)
	case "error":
		var e struct {
			Error string `json:"error"`
		}
		json.Unmarshal(data, &e)
		return fmt.Errorf("chat failed: %s", e.Error)
	}
	return nil
}
