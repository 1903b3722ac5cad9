package models

// Message represents a WebSocket message
type Message struct {
	Type    string      `json:"type"`
	Content interface{} `json:"content"`
}

// Event types pushed to connected dashboards
const (
	EventPaymentRecorded     = "payment_recorded"
	EventPaymentUnmarked     = "payment_unmarked"
	EventRemindersDispatched = "reminders_dispatched"
)
