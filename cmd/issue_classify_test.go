package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyIssueCategory(t *testing.T) {
	tests := []struct {
		text     string
		expected string
	}{
		// Water
		{"Burst pipe flooding the corner", "Water"},
		{"Fire hydrant leaking", "Water"},
		{"Blocked storm drain", "Water"},

		// Utilities
		{"Streetlight out since Tuesday", "Utilities"},
		{"Power outage on the whole block", "Utilities"},
		{"Exposed wire near the bus stop", "Utilities"},

		// Roads
		{"Large pothole in the left lane", "Roads"},
		{"Traffic signal stuck on red", "Roads"},
		{"Cracked sidewalk outside school", "Roads"},

		// Sanitation
		{"Garbage not collected this week", "Sanitation"},
		{"Overflowing bin at the market", "Sanitation"},

		// Parks
		{"Fallen tree across the path", "Parks"},
		{"Broken swing in playground", "Parks"},

		// Safety
		{"Graffiti on the library wall", "Safety"},

		// Default
		{"Noise complaint", "General"},

		// Case insensitivity
		{"POTHOLE", "Roads"},

		// Water takes precedence over roads
		{"Water leak under the road", "Water"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifyIssueCategory(tt.text))
		})
	}
}

func TestClassifyIssuePriority(t *testing.T) {
	tests := []struct {
		text     string
		expected int
	}{
		// Urgent
		{"Emergency: sinkhole on Main Rd", priorityUrgent},
		{"Burst main, street flooding", priorityUrgent},
		{"Exposed wire near the bus stop", priorityUrgent},
		{"Child injured on broken swing", priorityUrgent},

		// High
		{"Water leak on 5th Ave", priorityHigh},
		{"Power outage on the whole block", priorityHigh},
		{"Road blocked by debris", priorityHigh},

		// Low
		{"Minor crack in the pavement", priorityLow},
		{"Faded lane markings", priorityLow},
		{"Graffiti on the library wall", priorityLow},

		// Normal (default)
		{"Large pothole in the left lane", priorityNormal},
		{"Garbage not collected this week", priorityNormal},

		// Case insensitivity
		{"URGENT repair", priorityUrgent},
		{"MINOR issue", priorityLow},

		// Higher tiers take precedence
		{"Minor leak", priorityHigh},
		{"Urgent: minor hazard", priorityUrgent},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifyIssuePriority(tt.text))
		})
	}
}
