package models

import "time"

// LocalEvent is a community event announced by the municipality.
type LocalEvent struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
}

// Clone returns a copy of the event.
func (e *LocalEvent) Clone() *LocalEvent {
	c := *e
	return &c
}

// NewEvent is the payload for announcing an event.
type NewEvent struct {
	Title       string    `json:"title" validate:"required"`
	Category    string    `json:"category" validate:"required,notblank"`
	Description string    `json:"description"`
	Date        time.Time `json:"date" validate:"required"`
}
