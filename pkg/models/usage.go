package models

import "time"

// TokenUsage holds per-category token counts for a single event.
type TokenUsage struct {
	InputTokens      uint64 `json:"input_tokens"`
	OutputTokens     uint64 `json:"output_tokens"`
	CacheWriteTokens uint64 `json:"cache_write_tokens"`
	CacheReadTokens  uint64 `json:"cache_read_tokens"`
	ToolInputTokens  uint64 `json:"tool_input_tokens"`
	ToolOutputTokens uint64 `json:"tool_output_tokens"`
}

// Total returns the sum of all six counters.
func (u TokenUsage) Total() uint64 {
	return u.InputTokens + u.OutputTokens + u.CacheWriteTokens +
		u.CacheReadTokens + u.ToolInputTokens + u.ToolOutputTokens
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheWriteTokens += other.CacheWriteTokens
	u.CacheReadTokens += other.CacheReadTokens
	u.ToolInputTokens += other.ToolInputTokens
	u.ToolOutputTokens += other.ToolOutputTokens
}

// UsageEvent is one unit of observed LLM consumption.
type UsageEvent struct {
	Provider  string     `json:"provider"`
	Model     string     `json:"model"`
	SessionID string     `json:"session_id"`
	Timestamp time.Time  `json:"timestamp"`
	Usage     TokenUsage `json:"usage"`
}

// MonthLabel returns the event's YYYY-MM in UTC.
func (e UsageEvent) MonthLabel() string {
	return e.Timestamp.UTC().Format("2006-01")
}

// DayLabel returns the event's YYYY-MM-DD in UTC.
func (e UsageEvent) DayLabel() string {
	return e.Timestamp.UTC().Format("2006-01-02")
}

// EventSummary aggregates stored events for one provider/model pair.
type EventSummary struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	EventCount   int    `json:"event_count"`
	SessionCount int    `json:"session_count"`
	TotalTokens  uint64 `json:"total_tokens"`
}
