// internal/event/event.go
package event

import (
	"fmt"

	"github.com/google/uuid"
)

// Type discriminates the payload carried by an Event.
type Type string

const (
	TypePerformance Type = "performance"
	TypeError       Type = "error"
	TypeBehavior    Type = "behavior"
	TypeReplay      Type = "replay"
)

// Types lists every valid discriminator, in wire order.
var Types = []Type{TypePerformance, TypeError, TypeBehavior, TypeReplay}

// DeviceInfo is a point-in-time description of the host device, captured
// once per event so the collector never has to join against session state.
type DeviceInfo struct {
	ScreenWidth    int    `json:"screenWidth"`
	ScreenHeight   int    `json:"screenHeight"`
	ViewportWidth  int    `json:"viewportWidth"`
	ViewportHeight int    `json:"viewportHeight"`
	Platform       string `json:"platform"`
	Language       string `json:"language"`
	Timezone       string `json:"timezone"`
	Connection     string `json:"connection,omitempty"`
}

// Envelope is the common header carried by every captured record.
// EventID is unique within a session; SessionID never rotates for the
// session's lifetime (changing the user does not touch it).
type Envelope struct {
	EventID   string     `json:"eventId"`
	AppID     string     `json:"appId"`
	SessionID string     `json:"sessionId"`
	UserID    string     `json:"userId,omitempty"`
	Timestamp int64      `json:"timestamp"` // wall-clock ms at capture, monotonic per component
	PageURL   string     `json:"pageUrl"`
	UserAgent string     `json:"userAgent"`
	Device    DeviceInfo `json:"deviceInfo"`
	Type      Type       `json:"type"`
}

// Event is the tagged union flowing through the whole pipeline:
// capture -> queue -> sender -> collector. Exactly one payload pointer is
// non-nil and it must agree with Envelope.Type.
type Event struct {
	Envelope
	Error       *ErrorPayload       `json:"error,omitempty"`
	Performance *PerformancePayload `json:"performance,omitempty"`
	Behavior    *BehaviorPayload    `json:"behavior,omitempty"`
	Replay      *ReplayPayload      `json:"replay,omitempty"`
}

// Validate checks the discriminator/payload agreement. Used by tests and
// by the dev collector; the capture components construct events through
// the typed helpers below and cannot produce a mismatch.
func (e *Event) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event: missing eventId")
	}
	if e.SessionID == "" {
		return fmt.Errorf("event: missing sessionId")
	}
	if e.Timestamp <= 0 {
		return fmt.Errorf("event: timestamp must be positive")
	}
	var want bool
	switch e.Type {
	case TypeError:
		want = e.Error != nil
	case TypePerformance:
		want = e.Performance != nil
	case TypeBehavior:
		want = e.Behavior != nil
	case TypeReplay:
		want = e.Replay != nil
	default:
		return fmt.Errorf("event: invalid type %q", e.Type)
	}
	if !want {
		return fmt.Errorf("event: type %q without matching payload", e.Type)
	}
	return nil
}

// NewEnvelope stamps a fresh envelope: unique id, monotonic ms timestamp.
func NewEnvelope(appID, sessionID, userID, pageURL, userAgent string, dev DeviceInfo, t Type) Envelope {
	return Envelope{
		EventID:   uuid.NewString(),
		AppID:     appID,
		SessionID: sessionID,
		UserID:    userID,
		Timestamp: NowMS(),
		PageURL:   pageURL,
		UserAgent: userAgent,
		Device:    dev,
		Type:      t,
	}
}

// EnvelopeFunc stamps envelopes for one session. The orchestrator owns
// the identity fields; capture components only pick the type.
type EnvelopeFunc func(t Type) Envelope

// Batch is the wire body of one POST (and of the beacon fallback):
// {events, timestamp, sdk_version}.
type Batch struct {
	Events     []*Event `json:"events"`
	Timestamp  int64    `json:"timestamp"`
	SDKVersion string   `json:"sdk_version"`
}
