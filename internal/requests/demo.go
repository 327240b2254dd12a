package requests

import (
	"time"

	"github.com/joescharf/civic/internal/models"
)

type demoRequest struct {
	models.NewServiceRequest
	status   models.RequestStatus
	progress int
}

func demoRequests(now time.Time) []demoRequest {
	ago := func(days int) time.Time { return now.AddDate(0, 0, -days) }
	return []demoRequest{
		{models.NewServiceRequest{Title: "Printer Not Working", Description: "Printer in the admin office is offline.", Priority: 2, CreatedAt: ago(3)}, models.RequestStatusPending, 0},
		{models.NewServiceRequest{Title: "Wi-Fi Connection Issue", Description: "Network connection is dropping intermittently.", Priority: 3, CreatedAt: ago(2)}, models.RequestStatusInProgress, 50},
		{models.NewServiceRequest{Title: "Software Update Needed", Description: "Requesting update for accounting software.", Priority: 1, CreatedAt: ago(5)}, models.RequestStatusCompleted, 100},
		{models.NewServiceRequest{Title: "Broken Projector", Description: "Projector in classroom B2 needs repair.", Priority: 3, CreatedAt: ago(1)}, models.RequestStatusPending, 0},
		{models.NewServiceRequest{Title: "Request for New Chairs", Description: "Staff lounge needs new chairs.", Priority: 1, CreatedAt: ago(4)}, models.RequestStatusPending, 0},
	}
}

// Seed opens a handful of sample requests dated relative to now, in
// assorted states.
func (t *Tracker) Seed(now time.Time) ([]*models.ServiceRequest, error) {
	var out []*models.ServiceRequest
	for _, d := range demoRequests(now) {
		r, err := t.Create(d.NewServiceRequest)
		if err != nil {
			return out, err
		}
		if d.status != models.RequestStatusPending {
			if _, err := t.UpdateStatus(r.ID, d.status, d.progress); err != nil {
				return out, err
			}
			r.Status, r.Progress = d.status, d.progress
		}
		out = append(out, r)
	}
	return out, nil
}
