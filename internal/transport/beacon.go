// internal/transport/beacon.go
package transport

import (
	"fmt"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"webmon-sdk/internal/event"
	"webmon-sdk/internal/metrics"
)

// BeaconFunc is the host's unload-safe delivery channel.
type BeaconFunc func(url string, body []byte) bool

// Beacon is the one-shot unload sender. No retry, no compression; the
// API key rides in the query string because beacons cannot carry
// headers.
type Beacon struct {
	endpoint   string
	apiKey     string
	sdkVersion string
	send       BeaconFunc
	log        zerolog.Logger
	metrics    *metrics.Metrics
}

func NewBeacon(endpoint, apiKey, sdkVersion string, send BeaconFunc, log zerolog.Logger, m *metrics.Metrics) *Beacon {
	return &Beacon{
		endpoint:   endpoint,
		apiKey:     apiKey,
		sdkVersion: sdkVersion,
		send:       send,
		log:        log,
		metrics:    m,
	}
}

// Send queues one beacon with the standard wire body. An empty event
// list is a success with no request.
func (b *Beacon) Send(events []*event.Event) error {
	if len(events) == 0 {
		return nil
	}
	body, err := json.Marshal(event.Batch{
		Events:     events,
		Timestamp:  event.NowMS(),
		SDKVersion: b.sdkVersion,
	})
	if err != nil {
		return fmt.Errorf("encode beacon: %w", err)
	}

	target := b.endpoint + "?apiKey=" + url.QueryEscape(b.apiKey)
	if !b.send(target, body) {
		return fmt.Errorf("beacon refused by host")
	}
	metrics.Add(&b.metrics.BeaconSentTotal, 1)
	b.log.Debug().Int("events", len(events)).Msg("beacon sent")
	return nil
}
