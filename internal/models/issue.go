package models

import (
	"fmt"
	"strings"
	"time"
)

// IssueStatus represents the state of a reported issue.
type IssueStatus string

const (
	IssueStatusPending    IssueStatus = "pending"
	IssueStatusInProgress IssueStatus = "in_progress"
	IssueStatusResolved   IssueStatus = "resolved"
)

// IssueStatuses lists every valid status in lifecycle order.
var IssueStatuses = []IssueStatus{
	IssueStatusPending,
	IssueStatusInProgress,
	IssueStatusResolved,
}

// Valid reports whether s is one of the known statuses.
func (s IssueStatus) Valid() bool {
	switch s {
	case IssueStatusPending, IssueStatusInProgress, IssueStatusResolved:
		return true
	}
	return false
}

// ParseIssueStatus normalizes user input such as "In Progress" or
// "in-progress" and rejects anything outside the known set.
func ParseIssueStatus(s string) (IssueStatus, error) {
	status := IssueStatus(normalizeEnum(s))
	if !status.Valid() {
		return "", fmt.Errorf("unknown issue status %q (use: pending, in_progress, resolved)", s)
	}
	return status, nil
}

// Issue is a single citizen report held by the issue store.
type Issue struct {
	ID             int64       `json:"id"`
	Category       string      `json:"category"`
	Priority       int         `json:"priority"`
	Status         IssueStatus `json:"status"`
	DateReported   time.Time   `json:"date_reported"`
	Location       string      `json:"location"`
	Description    string      `json:"description"`
	AttachmentPath string      `json:"attachment_path,omitempty"`
}

// Clone returns a copy of the issue.
func (i *Issue) Clone() *Issue {
	c := *i
	return &c
}

// NewIssue is the payload handed to the store when a citizen files a report.
// ID, status and (when zero) the report date are assigned by the store.
type NewIssue struct {
	Location       string    `json:"location" validate:"required"`
	Category       string    `json:"category" validate:"required,notblank"`
	Description    string    `json:"description" validate:"required"`
	Priority       int       `json:"priority" validate:"gte=0"`
	AttachmentPath string    `json:"attachment_path,omitempty"`
	DateReported   time.Time `json:"date_reported,omitempty"`
}

// NormalizeCategory returns the key used for case-insensitive category matching.
func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.Join(strings.Fields(s), "_")
}
