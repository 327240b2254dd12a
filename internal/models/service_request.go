package models

import (
	"fmt"
	"time"
)

// RequestStatus represents the state of a service request.
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "pending"
	RequestStatusInProgress RequestStatus = "in_progress"
	RequestStatusCompleted  RequestStatus = "completed"
)

// Valid reports whether s is one of the known request statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusInProgress, RequestStatusCompleted:
		return true
	}
	return false
}

// ParseRequestStatus normalizes user input and rejects unknown statuses.
func ParseRequestStatus(s string) (RequestStatus, error) {
	status := RequestStatus(normalizeEnum(s))
	if !status.Valid() {
		return "", fmt.Errorf("unknown request status %q (use: pending, in_progress, completed)", s)
	}
	return status, nil
}

// ServiceRequest tracks a resident's request for municipal service.
type ServiceRequest struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      RequestStatus `json:"status"`
	Priority    int           `json:"priority"`
	Progress    int           `json:"progress"` // 0-100
	CreatedAt   time.Time     `json:"created_at"`
}

// Clone returns a copy of the request.
func (r *ServiceRequest) Clone() *ServiceRequest {
	c := *r
	return &c
}

// NewServiceRequest is the payload for opening a service request.
type NewServiceRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	Priority    int       `json:"priority" validate:"gte=0"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}
