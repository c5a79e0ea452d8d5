// internal/event/payload.go
package event

// ErrorKind classifies the origin of an error event.
type ErrorKind string

const (
	ErrorJavaScript ErrorKind = "javascript"
	ErrorNetwork    ErrorKind = "network"
	ErrorPromise    ErrorKind = "promise"
	ErrorCustom     ErrorKind = "custom"
)

// Severity levels, ordered. Rank() gives the comparison order used by
// sampling overrides (severity >= high always passes).
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return -1
}

// ErrorPayload carries one captured error. Fingerprint is a pure function
// of (message, fileName, line, column), with no timestamp and no salt, so
// dedup is deterministic and testable.
type ErrorPayload struct {
	ErrorType    ErrorKind      `json:"errorType"`
	Message      string         `json:"message"`
	StackTrace   string         `json:"stackTrace,omitempty"`
	FileName     string         `json:"fileName,omitempty"`
	LineNumber   int            `json:"lineNumber,omitempty"`
	ColumnNumber int            `json:"columnNumber,omitempty"`
	Severity     Severity       `json:"severity"`
	Context      map[string]any `json:"context,omitempty"`
	Fingerprint  string         `json:"fingerprint"`
}

// Metrics is the per-cycle performance snapshot. Web-vitals fields are
// pointers: absent means "not yet observed", which the collector must be
// able to distinguish from zero.
type Metrics struct {
	LCP              *float64           `json:"lcp,omitempty"`
	FID              *float64           `json:"fid,omitempty"`
	CLS              *float64           `json:"cls,omitempty"`
	FCP              *float64           `json:"fcp,omitempty"`
	TTFB             *float64           `json:"ttfb,omitempty"`
	PageLoadTime     float64            `json:"pageLoadTime"`
	DOMReadyTime     float64            `json:"domReadyTime"`
	ResourceLoadTime float64            `json:"resourceLoadTime"`
	CustomMetrics    map[string]float64 `json:"customMetrics,omitempty"`
}

// ResourceTiming mirrors one resource entry from the performance timeline.
type ResourceTiming struct {
	Name            string  `json:"name"`
	EntryType       string  `json:"entryType"`
	StartTime       float64 `json:"startTime"`
	Duration        float64 `json:"duration"`
	TransferSize    int64   `json:"transferSize"`
	EncodedBodySize int64   `json:"encodedBodySize"`
	DecodedBodySize int64   `json:"decodedBodySize"`
}

type PerformancePayload struct {
	Metrics   Metrics          `json:"metrics"`
	Resources []ResourceTiming `json:"resources,omitempty"`
}

// Action names a behavior event kind.
type Action string

const (
	ActionClick      Action = "click"
	ActionScroll     Action = "scroll"
	ActionInput      Action = "input"
	ActionChange     Action = "change"
	ActionNavigate   Action = "navigate"
	ActionFocus      Action = "focus"
	ActionBlur       Action = "blur"
	ActionVisibility Action = "visibility"
	ActionResize     Action = "resize"
	ActionCustom     Action = "custom"
)

type Coordinates struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// BehaviorPayload carries one user interaction. Target is a CSS path;
// Value is action-specific (masked summary for inputs, URL for navigate,
// offsets for scroll, and so on).
type BehaviorPayload struct {
	Action      Action         `json:"action"`
	Target      string         `json:"target,omitempty"`
	Value       any            `json:"value,omitempty"`
	Coordinates *Coordinates   `json:"coordinates,omitempty"`
	Duration    float64        `json:"duration,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

// RecordKind names one replay delta kind. The set is closed.
type RecordKind string

const (
	RecordDOM          RecordKind = "dom"
	RecordInput        RecordKind = "input"
	RecordScroll       RecordKind = "scroll"
	RecordMutation     RecordKind = "mutation"
	RecordResize       RecordKind = "resize"
	RecordIntersection RecordKind = "intersection"
)

// ReplayRecord is one entry in a replay transmission. The first record of
// any transmission is a full-snapshot dom record; everything after is a
// delta keyed to node paths.
type ReplayRecord struct {
	Timestamp int64      `json:"timestamp"`
	Type      RecordKind `json:"type"`
	Data      any        `json:"data"`
}

type ReplayPayload struct {
	Records []ReplayRecord `json:"events"`
}
