package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thatsimonsguy/tank-controller/db"
	"github.com/thatsimonsguy/tank-controller/internal/events"
)

type debugFlags struct {
	DBPath    string
	Limit     int
	Kind      string
	OlderThan time.Duration
	URL       string
	Timeout   time.Duration
	Min       int
	Max       int
}

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	flags := &debugFlags{}

	root := &cobra.Command{
		Use:   "tank-debug",
		Short: "Inspect the tank controller event history and control API",
		Long: `tank-debug reads the controller's sqlite event history and talks to a
running controller over its HTTP control API.

Examples:
  tank-debug events --limit=20 --kind=pump_run_pulse
  tank-debug counts
  tank-debug prune --older-than=720h
  tank-debug status --url=http://192.168.0.40`,
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&flags.DBPath, "db", "data/tank.db", "path to the SQLite database file")

	root.AddCommand(
		eventsCommand(flags),
		countsCommand(flags),
		pruneCommand(flags),
		statusCommand(flags),
		limitsCommand(flags),
	)
	return root
}

func eventsCommand(flags *debugFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			evts, err := db.RecentEventsCLI(flags.DBPath, flags.Limit, flags.Kind)
			if err != nil {
				return fmt.Errorf("read events: %w", err)
			}
			for _, e := range evts {
				fmt.Fprintln(cmd.OutOrStdout(), formatEvent(e))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&flags.Limit, "limit", 20, "maximum number of events")
	cmd.Flags().StringVar(&flags.Kind, "kind", "", "only show events of this kind")
	return cmd
}

func countsCommand(flags *debugFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Count recorded events by kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := db.CountEventsCLI(flags.DBPath)
			if err != nil {
				return fmt.Errorf("count events: %w", err)
			}
			kinds := make([]string, 0, len(counts))
			for k := range counts {
				kinds = append(kinds, string(k))
			}
			sort.Strings(kinds)
			for _, k := range kinds {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %d\n", k, counts[events.Kind(k)])
			}
			return nil
		},
	}
}

func pruneCommand(flags *debugFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete events older than a duration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.OlderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			n, err := db.PruneEventsCLI(flags.DBPath, flags.OlderThan)
			if err != nil {
				return fmt.Errorf("prune events: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d events\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&flags.OlderThan, "older-than", 30*24*time.Hour, "age cut-off")
	return cmd
}

func statusCommand(flags *debugFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Fetch /estado from a running controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := request(flags, http.MethodGet, "/estado", "")
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), body)
			return nil
		},
	}
	addRemoteFlags(cmd, flags)
	return cmd
}

func limitsCommand(flags *debugFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "limits",
		Short: "Set the hysteresis limits on a running controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := fmt.Sprintf(`{"max":%d,"min":%d}`, flags.Max, flags.Min)
			body, err := request(flags, http.MethodPost, "/limites", payload)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	}
	addRemoteFlags(cmd, flags)
	cmd.Flags().IntVar(&flags.Min, "min", 20, "lower limit percent")
	cmd.Flags().IntVar(&flags.Max, "max", 50, "upper limit percent")
	return cmd
}

func addRemoteFlags(cmd *cobra.Command, flags *debugFlags) {
	cmd.Flags().StringVar(&flags.URL, "url", "http://localhost", "controller base URL")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", 5*time.Second, "request timeout")
}

func request(flags *debugFlags, method, path, payload string) (string, error) {
	client := &http.Client{Timeout: flags.Timeout}
	req, err := http.NewRequest(method, strings.TrimRight(flags.URL, "/")+path, strings.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if payload != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}

func formatEvent(e events.Event) string {
	return fmt.Sprintf("%s  %-16s src=%-6s nivel=%3d bomba=%t min=%d max=%d",
		e.Time.Local().Format(time.DateTime), e.Kind, e.Source, e.Level, e.Running,
		e.Limits.MinPercent, e.Limits.MaxPercent)
}
