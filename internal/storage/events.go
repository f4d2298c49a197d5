package storage

import "time"

// EventWriter is the interface for writing decision events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *DecisionEvent)
	Close()
}

// DecisionEvent records one validate-tool-call outcome for the audit
// trail.
type DecisionEvent struct {
	RequestID     string
	ClientID      string
	Timestamp     time.Time
	Role          string
	Phase         string
	ToolName      string
	ToolArguments string // JSON, truncated to ArgumentPreviewLength
	Allowed       bool
	Stage         string // chain stage that decided
	Reason        string
	LatencyMs     float32
	Source        string // "http" or "embedded"
}

// ArgumentPreviewLength is the max chars of serialized arguments stored
// per event.
const ArgumentPreviewLength = 500

// TruncateArguments returns the first N characters (runes) of the
// serialized arguments. It never splits a multi-byte UTF-8 character.
func TruncateArguments(args string, maxLen int) string {
	runes := []rune(args)
	if len(runes) <= maxLen {
		return args
	}
	return string(runes[:maxLen])
}
