package server

import (
	"crypto/rand"
	"encoding/hex"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/meshpreview/internal/preview"
)

// subscriberBuffer is how many metrics updates a slow websocket client may
// fall behind before older ones are dropped.
const subscriberBuffer = 8

type session struct {
	id    string
	panel *preview.Panel
	log   *zap.Logger

	mu     sync.Mutex
	subs   map[chan preview.SceneMetrics]struct{}
	latest *preview.SceneMetrics
	closed bool
}

func newSessionID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func newSession(id string, log *zap.Logger) *session {
	return &session{
		id:   id,
		log:  log.With(zap.String("session", id)),
		subs: make(map[chan preview.SceneMetrics]struct{}),
	}
}

// publish runs as the panel's metrics callback. It never blocks.
func (s *session) publish(sm preview.SceneMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &sm
	for ch := range s.subs {
		select {
		case ch <- sm:
		default:
			// Drop the oldest update to make room.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- sm:
			default:
			}
		}
	}
}

// subscribe returns a channel of metrics updates, primed with the latest
// value if any. The channel is closed when the session closes.
func (s *session) subscribe() (<-chan preview.SceneMetrics, func()) {
	ch := make(chan preview.SceneMetrics, subscriberBuffer)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	if s.latest != nil {
		ch <- *s.latest
	}
	s.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

func (s *session) close() {
	s.panel.Unmount()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
	s.log.Debug("session closed")
}
