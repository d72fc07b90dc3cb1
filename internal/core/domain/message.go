package domain

import "time"

// TimestampLayout is the second-precision, server-local format used for
// persisted and broadcast message timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// SystemUsername replaces the sender on server-generated notices.
const SystemUsername = "SYSTEM"

// Message is a persisted chat line. ID reflects insertion order.
type Message struct {
	ID        int64  `json:"-"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
}

// FormatTimestamp renders t in the local zone with TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}
