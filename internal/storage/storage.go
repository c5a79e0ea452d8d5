// internal/storage/storage.go
package storage

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"webmon-sdk/browser"
	"webmon-sdk/internal/event"
)

// Well-known keys inside the namespaced stores.
const (
	KeySessionID    = "session_id"
	KeyUserID       = "user_id"
	KeyUserProps    = "user_props"
	KeyFailedEvents = "failed_events"
)

// memStorage is the process-lifetime fallback when a backing store is
// unavailable or over quota.
type memStorage struct {
	mu sync.Mutex
	m  map[string]string
}

func (s *memStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *memStorage) Set(key, value string) error {
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
	return nil
}

func (s *memStorage) Remove(key string) {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
}

// KV wraps one host store with the `monitor_<appId>:` namespace and a
// transparent in-memory fallback. The fallback is one-way: once a write
// fails we stop trusting the backing store for the process lifetime and
// warn exactly once (storage failures tend to repeat on every call, and
// a monitoring SDK must not spam the console it is monitoring).
type KV struct {
	mu       sync.Mutex
	prefix   string
	backing  browser.Storage
	fellBack bool
	log      zerolog.Logger
}

// NewKV namespaces backing under appID. A nil backing starts on the
// fallback immediately.
func NewKV(backing browser.Storage, appID string, log zerolog.Logger) *KV {
	kv := &KV{
		prefix:  "monitor_" + appID + ":",
		backing: backing,
		log:     log,
	}
	if backing == nil {
		kv.backing = &memStorage{m: map[string]string{}}
		kv.fellBack = true
		log.Warn().Msg("storage backend unavailable, using in-memory store")
	}
	return kv
}

func (kv *KV) key(k string) string { return kv.prefix + k }

func (kv *KV) Get(k string) (string, bool) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.backing.Get(kv.key(k))
}

func (kv *KV) Set(k, v string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if err := kv.backing.Set(kv.key(k), v); err != nil {
		if !kv.fellBack {
			kv.fellBack = true
			kv.log.Warn().Err(err).Msg("storage write failed, falling back to in-memory store")
			kv.backing = &memStorage{m: map[string]string{}}
		}
		_ = kv.backing.Set(kv.key(k), v)
	}
}

func (kv *KV) Remove(k string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.backing.Remove(kv.key(k))
}

// SessionID returns the stable session identifier, creating and
// persisting `<ms>-<random>` on first read. The id never rotates within
// a session; identity changes do not touch it.
func SessionID(kv *KV) string {
	if id, ok := kv.Get(KeySessionID); ok && id != "" {
		return id
	}
	id := fmt.Sprintf("%d-%s", event.NowMS(), uuid.NewString()[:8])
	kv.Set(KeySessionID, id)
	return id
}
