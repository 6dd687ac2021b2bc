// Package pipeline implements the message enrichment pipeline: the four
// generation call-sites and the idempotent state machine that drives one
// raw inbound message through decrypt, classify, qualify, extract,
// compose-reply, and persist.
package pipeline

import "strings"

// Priority of a qualified lead. Once a QualifiedLead exists its priority is
// only ever escalated or retained, never degraded.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// ParsePriority normalizes a priority string, defaulting to Low.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh
	case "medium":
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Classification is the Classify call-site output.
type Classification struct {
	IsLead bool
	Intent string
}

// Qualification is the Qualify call-site output.
type Qualification struct {
	IsQualified bool
	Priority    Priority
}

// Contact is the Extract call-site output. Nil fields mean the message did
// not yield that field; they never overwrite known values.
type Contact struct {
	Name  *string
	Email *string
}
