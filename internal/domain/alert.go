package domain

import "time"

// Source identifies which channel produced an alert.
type Source string

const (
	SourcePoll   Source = "poll"
	SourceStream Source = "stream"
	SourceManual Source = "manual"
)

// Alert is a notification accepted by the notifier and handed to the
// dispatch workers.
type Alert struct {
	ID         string    `json:"id" db:"id"`
	Source     Source    `json:"source" db:"source"`
	Message    string    `json:"message" db:"message"`
	OrderCount int       `json:"order_count" db:"order_count"`
	TargetURL  string    `json:"target_url,omitempty" db:"target_url"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// StreamAlertMessage is the text used for alerts raised by the SSE channel.
const StreamAlertMessage = "You have new pending orders"
