package model

import "time"

// TrackingMatch is one tracking number found in one message. Immutable once
// created; lives in the bounded recent-match cache until evicted.
type TrackingMatch struct {
	// Supplier is the name of the vendor rule that matched.
	Supplier string `json:"supplier"`

	// TrackingID is the extracted tracking number, trimmed.
	TrackingID string `json:"tracking_id"`

	// EmailUID is the mailbox-assigned message identifier.
	EmailUID uint32 `json:"email_uid"`

	// MessageID is the Message-Id header of the source mail, if present.
	MessageID string `json:"message_id,omitempty"`

	Subject string    `json:"subject,omitempty"`
	Date    time.Time `json:"date,omitempty"`
	Sender  string    `json:"from,omitempty"`

	// Snippet is a short excerpt surrounding the match, for human review.
	Snippet string `json:"snippet,omitempty"`

	// URL is the expanded tracking link, if the rule carries a template.
	URL string `json:"url,omitempty"`
}
