package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/civic/internal/events"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/output"
)

var (
	eventTitle    string
	eventCategory string
	eventDesc     string
	eventDate     string
)

// now is the clock for date-relative commands; tests pin it.
var now = time.Now

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Manage community events",
	RunE: func(cmd *cobra.Command, args []string) error {
		return eventUpcomingRun()
	},
}

var eventAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Announce an event",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return eventAddRun()
	},
}

var eventListCmd = &cobra.Command{
	Use:     "list [category]",
	Aliases: []string{"ls"},
	Short:   "List events in date order, optionally for one category",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var category string
		if len(args) > 0 {
			category = args[0]
		}
		return eventListRun(category)
	},
}

var eventSearchCmd = &cobra.Command{
	Use:   "search [category]",
	Short: "Search events by category and/or --date",
	Long: `Search events by category and/or --date. Searched categories are
remembered and drive 'civic event recommend'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var category string
		if len(args) > 0 {
			category = args[0]
		}
		return eventSearchRun(category)
	},
}

var eventUpcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "List events in the upcoming window",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return eventUpcomingRun()
	},
}

var eventRecommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Suggest events based on recent searches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return eventRecommendRun()
	},
}

var eventSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Add a set of sample events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return eventSeedRun()
	},
}

func init() {
	eventAddCmd.Flags().StringVar(&eventTitle, "title", "", "Event title (required)")
	eventAddCmd.Flags().StringVar(&eventCategory, "category", "", "Category (required)")
	eventAddCmd.Flags().StringVar(&eventDesc, "desc", "", "Event description")
	eventAddCmd.Flags().StringVar(&eventDate, "date", "", "Event date YYYY-MM-DD (required)")
	_ = eventAddCmd.MarkFlagRequired("title")
	_ = eventAddCmd.MarkFlagRequired("category")
	_ = eventAddCmd.MarkFlagRequired("date")

	eventSearchCmd.Flags().StringVar(&eventDate, "date", "", "Only events on this day (YYYY-MM-DD)")

	eventCmd.AddCommand(eventAddCmd)
	eventCmd.AddCommand(eventListCmd)
	eventCmd.AddCommand(eventSearchCmd)
	eventCmd.AddCommand(eventUpcomingCmd)
	eventCmd.AddCommand(eventRecommendCmd)
	eventCmd.AddCommand(eventSeedCmd)
	rootCmd.AddCommand(eventCmd)
}

func parseDay(value string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", value)
	}
	return d, nil
}

func eventAddRun() error {
	s, err := getState()
	if err != nil {
		return err
	}
	date, err := parseDay(eventDate)
	if err != nil {
		return err
	}

	in := models.NewEvent{Title: eventTitle, Category: eventCategory, Description: eventDesc, Date: date}
	if dryRun {
		ui.DryRunMsg("Would announce %s on %s [%s]", in.Title, eventDate, in.Category)
		return nil
	}

	e, err := s.events.AddEvent(in)
	if err != nil {
		return err
	}
	if err := s.saveEvents(); err != nil {
		return err
	}
	ui.Success("Announced event %s: %s on %s", output.Cyan(formatID(e.ID)), e.Title, e.Date.Format(dateLayout))
	return nil
}

func renderEvents(evs []*models.LocalEvent) {
	table := ui.Table([]string{"ID", "Date", "Category", "Title", "Description"})
	for _, e := range evs {
		_ = table.Append([]string{
			formatID(e.ID),
			e.Date.Format(dateLayout),
			e.Category,
			e.Title,
			output.Truncate(e.Description, 48),
		})
	}
	_ = table.Render()
}

func eventListRun(category string) error {
	s, err := getState()
	if err != nil {
		return err
	}

	var evs []*models.LocalEvent
	if category == "" {
		evs = s.events.GetAllEvents()
	} else {
		evs = s.events.GetEventsByCategory(category)
	}
	if len(evs) == 0 {
		ui.Info("No events found.")
		if cats := s.events.GetCategories(); len(cats) > 0 {
			ui.Info("Categories: %s", strings.Join(cats, ", "))
		}
		return nil
	}
	renderEvents(evs)
	return nil
}

func eventSearchRun(category string) error {
	s, err := getState()
	if err != nil {
		return err
	}

	q := events.Query{Category: category}
	if eventDate != "" {
		if q.Date, err = parseDay(eventDate); err != nil {
			return err
		}
	}
	evs := s.events.Search(q)

	// The search history changed even when nothing matched.
	if strings.TrimSpace(category) != "" && !dryRun {
		if err := s.saveEvents(); err != nil {
			return err
		}
	}

	if len(evs) == 0 {
		ui.Info("No events found.")
		return nil
	}
	renderEvents(evs)
	return nil
}

func eventUpcomingRun() error {
	s, err := getState()
	if err != nil {
		return err
	}
	evs := s.events.GetUpcomingEvents(now())
	if len(evs) == 0 {
		ui.Info("No upcoming events.")
		return nil
	}
	renderEvents(evs)
	return nil
}

func eventRecommendRun() error {
	s, err := getState()
	if err != nil {
		return err
	}
	evs := s.events.GetRecommendedEvents(now())
	if len(evs) == 0 {
		if recent := s.events.RecentSearches(); len(recent) == 0 {
			ui.Info("No recommendations yet. Try 'civic event search <category>'.")
		} else {
			ui.Info("Nothing coming up in %s.", recent[0])
		}
		return nil
	}
	ui.Info("Based on your interest in %s:", evs[0].Category)
	renderEvents(evs)
	return nil
}

func eventSeedRun() error {
	s, err := getState()
	if err != nil {
		return err
	}
	demo := events.DemoEvents(now())
	if dryRun {
		ui.DryRunMsg("Would add %d sample events", len(demo))
		return nil
	}
	for _, in := range demo {
		if _, err := s.events.AddEvent(in); err != nil {
			return err
		}
	}
	if err := s.saveEvents(); err != nil {
		return err
	}
	ui.Success("Added %d sample events", len(demo))
	return nil
}
