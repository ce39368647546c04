package domain

import (
	"net/url"
	"strings"
	"time"
)

// Status describes where a tracking record is in its lifecycle. A record
// starts as SENT and moves to OPENED exactly once, on the first engagement
// event of any kind; it never reverts.
type Status string

const (
	StatusSent   Status = "SENT"
	StatusOpened Status = "OPENED"
)

// Method records which channel produced the *first* engagement for a record.
// It is empty until the first event and is never overwritten afterwards, even
// when later events arrive on the other channel (first writer wins).
type Method string

const (
	MethodNone  Method = ""
	MethodPixel Method = "PIXEL"
	MethodClick Method = "CLICK"
)

// TrackingRecord is the engagement ledger for one outbound message, keyed by
// the caller-supplied tracking id.
//
// Field groups:
//   - identity and metadata (TrackingID through Company, SentAt) are immutable
//     after creation
//   - Status, OpenedAt, and Method form the first-engagement trio: set
//     together, exactly once; Status == OPENED iff OpenedAt != nil iff
//     Method != ""
//   - IPAddress and UserAgent are overwritten on every event (last writer wins)
//   - OpenCount increments by one on every event, unbounded
type TrackingRecord struct {
	TrackingID string     `json:"trackingId" dynamodbav:"tracking_id"`
	To         string     `json:"to" dynamodbav:"recipient"`
	Subject    string     `json:"subject" dynamodbav:"subject,omitempty"`
	Body       string     `json:"body" dynamodbav:"body,omitempty"`
	Role       string     `json:"role,omitempty" dynamodbav:"role,omitempty"`
	Company    string     `json:"company,omitempty" dynamodbav:"company,omitempty"`
	Status     Status     `json:"status" dynamodbav:"status"`
	Method     Method     `json:"method,omitempty" dynamodbav:"method,omitempty"`
	SentAt     time.Time  `json:"sentAt" dynamodbav:"sent_at"`
	OpenedAt   *time.Time `json:"openedAt,omitempty" dynamodbav:"opened_at,omitempty"`
	IPAddress  string     `json:"ipAddress,omitempty" dynamodbav:"ip_address,omitempty"`
	UserAgent  string     `json:"userAgent,omitempty" dynamodbav:"user_agent,omitempty"`
	OpenCount  int        `json:"openCount" dynamodbav:"open_count"`
}

// EngagementEvent is one pixel fetch or link click attributed to a tracking
// record. It is also the wire format for events queued by the edge beacon.
type EngagementEvent struct {
	TrackingID string    `json:"trackingId"`
	Method     Method    `json:"method"`
	TargetURL  string    `json:"targetUrl,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ApplyEngagement mutates the record according to the engagement rules: the
// counter and requester fields update on every event; the first event also
// sets the OPENED state, timestamp, and channel. OpenedAt takes the event's
// occurrence time, not the processing time, so queued events attribute
// correctly.
func (r *TrackingRecord) ApplyEngagement(evt EngagementEvent) {
	r.OpenCount++
	r.IPAddress = evt.IPAddress
	r.UserAgent = evt.UserAgent
	r.Status = StatusOpened
	if r.OpenedAt == nil {
		t := evt.OccurredAt
		r.OpenedAt = &t
	}
	if r.Method == MethodNone {
		r.Method = evt.Method
	}
}

// ValidateEmail reports whether the address is plausibly deliverable.
func ValidateEmail(email string) bool {
	email = strings.TrimSpace(email)
	if len(email) < 3 || len(email) > 254 {
		return false
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}

	local, dom := parts[0], parts[1]
	if len(local) == 0 || len(local) > 64 {
		return false
	}
	if len(dom) == 0 || len(dom) > 253 {
		return false
	}
	if !strings.Contains(dom, ".") {
		return false
	}

	_, err := url.Parse("mailto:" + email)
	return err == nil
}
