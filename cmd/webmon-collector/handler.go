// cmd/webmon-collector/handler.go
package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"webmon-sdk/internal/event"
)

// collectorMetrics is the operator-facing counter set served at
// /metrics. Plain text, one counter per line.
type collectorMetrics struct {
	RequestsTotal        int64
	BatchesAcceptedTotal int64
	EventsAcceptedTotal  int64
	EventsInvalidTotal   int64
	RejectedAuthTotal    int64
	RejectedBodyTotal    int64
	RejectedDecodeTotal  int64
}

func (m *collectorMetrics) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "requests_total=%d\n", atomic.LoadInt64(&m.RequestsTotal))
	fmt.Fprintf(&sb, "batches_accepted_total=%d\n", atomic.LoadInt64(&m.BatchesAcceptedTotal))
	fmt.Fprintf(&sb, "events_accepted_total=%d\n", atomic.LoadInt64(&m.EventsAcceptedTotal))
	fmt.Fprintf(&sb, "events_invalid_total=%d\n", atomic.LoadInt64(&m.EventsInvalidTotal))
	fmt.Fprintf(&sb, "rejected_auth_total=%d\n", atomic.LoadInt64(&m.RejectedAuthTotal))
	fmt.Fprintf(&sb, "rejected_body_total=%d\n", atomic.LoadInt64(&m.RejectedBodyTotal))
	fmt.Fprintf(&sb, "rejected_decode_total=%d\n", atomic.LoadInt64(&m.RejectedDecodeTotal))
	return sb.String()
}

type handler struct {
	apiKey  string
	maxBody int64
	log     zerolog.Logger
	metrics *collectorMetrics
}

// handleCollect is the hot path: auth, size limit, optional gzip,
// decode, per-event validation. The SDK posts batches with a Bearer
// header; the unload beacon cannot carry headers and authenticates via
// ?apiKey= instead, so both are accepted.
func (h *handler) handleCollect(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Encoding, Authorization, X-SDK-Version")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	atomic.AddInt64(&h.metrics.RequestsTotal, 1)

	if !h.authorized(r) {
		atomic.AddInt64(&h.metrics.RejectedAuthTotal, 1)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	defer r.Body.Close()

	var body io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			atomic.AddInt64(&h.metrics.RejectedDecodeTotal, 1)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer gz.Close()
		body = gz
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		atomic.AddInt64(&h.metrics.RejectedBodyTotal, 1)
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	var batch event.Batch
	if err := json.Unmarshal(raw, &batch); err != nil {
		atomic.AddInt64(&h.metrics.RejectedDecodeTotal, 1)
		h.log.Warn().Err(err).Msg("undecodable batch")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	accepted, invalid := 0, 0
	byType := map[event.Type]int{}
	for _, e := range batch.Events {
		if err := e.Validate(); err != nil {
			invalid++
			h.log.Debug().Err(err).Msg("invalid event")
			continue
		}
		accepted++
		byType[e.Type]++
	}
	atomic.AddInt64(&h.metrics.BatchesAcceptedTotal, 1)
	atomic.AddInt64(&h.metrics.EventsAcceptedTotal, int64(accepted))
	atomic.AddInt64(&h.metrics.EventsInvalidTotal, int64(invalid))

	h.log.Info().
		Str("sdk_version", batch.SDKVersion).
		Str("client_ip", clientIP(r)).
		Int("events", accepted).
		Int("invalid", invalid).
		Int("errors", byType[event.TypeError]).
		Int("performance", byType[event.TypePerformance]).
		Int("behavior", byType[event.TypeBehavior]).
		Int("replay", byType[event.TypeReplay]).
		Msg("batch received")

	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) authorized(r *http.Request) bool {
	if auth := r.Header.Get("Authorization"); auth == "Bearer "+h.apiKey {
		return true
	}
	return r.URL.Query().Get("apiKey") == h.apiKey
}

func (h *handler) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, h.metrics.String())
}
