package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIssueStatus(t *testing.T) {
	tests := []struct {
		input string
		want  IssueStatus
	}{
		{"pending", IssueStatusPending},
		{"Pending", IssueStatusPending},
		{"In Progress", IssueStatusInProgress},
		{"in-progress", IssueStatusInProgress},
		{"  in_progress ", IssueStatusInProgress},
		{"RESOLVED", IssueStatusResolved},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseIssueStatus(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseIssueStatus_Unknown(t *testing.T) {
	for _, input := range []string{"", "done", "closed", "in progress now"} {
		_, err := ParseIssueStatus(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestParseRequestStatus(t *testing.T) {
	got, err := ParseRequestStatus("Completed")
	require.NoError(t, err)
	assert.Equal(t, RequestStatusCompleted, got)

	_, err = ParseRequestStatus("resolved")
	assert.Error(t, err)
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, "roads", NormalizeCategory("  Roads "))
	assert.Equal(t, "water & sanitation", NormalizeCategory("Water & Sanitation"))
}

func TestIssueClone(t *testing.T) {
	orig := &Issue{ID: 1, Category: "Roads", Priority: 2}
	c := orig.Clone()
	c.Priority = 9
	assert.Equal(t, 2, orig.Priority)
}

func TestValidate_NewIssue(t *testing.T) {
	valid := NewIssue{Location: "Main St", Category: "Roads", Description: "Pothole", Priority: 1}
	assert.NoError(t, Validate(valid))

	err := Validate(NewIssue{Location: "Main St", Category: "   ", Description: "Pothole"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Category")

	err = Validate(NewIssue{Location: "Main St", Category: "Roads", Description: "Pothole", Priority: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Priority")

	err = Validate(NewIssue{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Location")
	assert.Contains(t, err.Error(), "Description")
}

func TestValidate_NewEvent(t *testing.T) {
	assert.NoError(t, Validate(NewEvent{Title: "Clean-up", Category: "Sanitation", Date: time.Now()}))

	err := Validate(NewEvent{Title: "Clean-up", Category: "Sanitation"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Date")
}

func TestValidate_NewServiceRequest(t *testing.T) {
	assert.NoError(t, Validate(NewServiceRequest{Title: "Printer offline"}))
	assert.Error(t, Validate(NewServiceRequest{}))
}
