package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/agenda/internal/appointment"
	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/schedule"
	"github.com/dukerupert/agenda/internal/tz"
)

const listLayout = "Mon 2006-01-02 15:04"

func newExpandCmd(e *env) *cobra.Command {
	var focus, view, sortMode, zone string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "expand",
		Short: "List the occurrences of one calendar view",
		Long: "Expand recurring appointments over the day, week, month or year around --focus " +
			"(default now) and list them in the requested order.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.open()
			if err != nil {
				return err
			}
			defer s.Close()

			zone = s.service.ResolveZone(zone)
			at, err := parseFlagTime("focus", focus, zone)
			if err != nil {
				return err
			}
			window, err := s.service.Occurrences(context.Background(), schedule.Query{
				Focus: at,
				View:  model.ViewMode(view),
				Sort:  model.SortMode(sortMode),
				Zone:  zone,
			})
			if err != nil {
				return fmt.Errorf("expand: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, window)
			}
			loc := tz.Location(window.Zone)
			fmt.Fprintf(out, "%s view %s to %s (%s)\n", window.View,
				window.Start.In(loc).Format(time.DateOnly), window.End.In(loc).Format(time.DateOnly), window.Zone)
			printOccurrences(out, window.Occurrences, loc)
			return nil
		},
	}
	cmd.Flags().StringVar(&focus, "focus", "", "date inside the view (default now)")
	cmd.Flags().StringVar(&view, "view", "", "day, week, month or year (default from config)")
	cmd.Flags().StringVar(&sortMode, "sort", "", "datetime, priority or category")
	cmd.Flags().StringVar(&zone, "zone", "", "IANA zone to lay the view out in")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the window as JSON")
	return cmd
}

func newAgendaCmd(e *env) *cobra.Command {
	var from, to, zone string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "List upcoming occurrences grouped by day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.open()
			if err != nil {
				return err
			}
			defer s.Close()

			zone = s.service.ResolveZone(zone)
			start, end := s.service.AgendaRange(zone)
			if from != "" {
				if start, err = parseFlagTime("from", from, zone); err != nil {
					return err
				}
			}
			if to != "" {
				if end, err = parseFlagTime("to", to, zone); err != nil {
					return err
				}
				if tz.IsDateOnly(to) {
					end = tz.EndOfDay(end.In(tz.Location(zone)))
				}
			}
			if end.Before(start) {
				return fmt.Errorf("--to is before --from")
			}

			days, err := s.service.Agenda(context.Background(), start, end, zone)
			if err != nil {
				return fmt.Errorf("agenda: %w", err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, days)
			}
			if len(days) == 0 {
				fmt.Fprintln(out, "nothing scheduled")
				return nil
			}
			loc := tz.Location(zone)
			for _, d := range days {
				fmt.Fprintln(out, d.Date)
				printOccurrences(out, d.Occurrences, loc)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "start of the listing (default today)")
	cmd.Flags().StringVar(&to, "to", "", "end of the listing, a bare date includes that day (default 30 days out)")
	cmd.Flags().StringVar(&zone, "zone", "", "IANA zone for day boundaries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the days as JSON")
	return cmd
}

func newZonesCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "zones",
		Short: "List the selectable time zones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.config()
			if err != nil {
				return err
			}
			def := tz.NormalizeTimeZone(cfg.Timezone, tz.UTC)
			out := cmd.OutOrStdout()
			for _, z := range tz.Zones() {
				if z == def {
					fmt.Fprintf(out, "%s (default)\n", z)
					continue
				}
				fmt.Fprintln(out, z)
			}
			return nil
		},
	}
}

func parseFlagTime(name, value, zone string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, ok := appointment.ParseDate(value, zone)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid --%s %q", name, value)
	}
	return t, nil
}

func printOccurrences(w io.Writer, items []model.Occurrence, loc *time.Location) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, o := range items {
		when := o.When().In(loc).Format(listLayout)
		if o.AllDay {
			when = o.When().In(loc).Format(time.DateOnly) + " all day"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\tp%d\n", when, o.Title, o.Category, o.Priority)
	}
	tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
