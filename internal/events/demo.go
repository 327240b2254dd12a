package events

import (
	"time"

	"github.com/joescharf/civic/internal/models"
)

// DemoEvents returns a small calendar of sample events scheduled relative
// to now, for first runs and demos.
func DemoEvents(now time.Time) []models.NewEvent {
	day := func(n int) time.Time { return now.AddDate(0, 0, n) }
	return []models.NewEvent{
		{
			Title:       "Community Clean-Up Drive",
			Category:    "Sanitation",
			Description: "Join us to clean and beautify the local park area.",
			Date:        day(1),
		},
		{
			Title:       "Garbage Collection Awareness",
			Category:    "Sanitation",
			Description: "A talk on improving local waste management practices.",
			Date:        day(4),
		},
		{
			Title:       "Road Resurfacing - Main Street",
			Category:    "Roads",
			Description: "Road resurfacing between 5th and 10th Avenue.",
			Date:        day(3),
		},
		{
			Title:       "Pothole Repairs in Residential Area",
			Category:    "Roads",
			Description: "Minor pothole repairs scheduled for the east district.",
			Date:        day(6),
		},
		{
			Title:       "Water Pipe Maintenance",
			Category:    "Utilities",
			Description: "Scheduled water supply maintenance in the central area.",
			Date:        day(2),
		},
		{
			Title:       "Electricity Line Upgrades",
			Category:    "Utilities",
			Description: "Upgrading power lines in the industrial zone.",
			Date:        day(8),
		},
	}
}
