package notify

import (
	"strings"
	"time"

	"github.com/mssola/useragent"

	id "crimewatch/pkg/domain"
)

// Session is a reviewer connection that receives commit events.
type Session struct {
	ID          id.SessionID
	SubmitterID id.SubmitterID
	Label       string
	Mobile      bool
	CreatedAt   time.Time

	buffer *RingBuffer
	ready  chan struct{}
}

func newSession(sessionID id.SessionID, submitterID id.SubmitterID, userAgent string, capacity int, now time.Time) *Session {
	return &Session{
		ID:          sessionID,
		SubmitterID: submitterID,
		Label:       ParseUserAgent(userAgent),
		Mobile:      useragent.New(userAgent).Mobile(),
		CreatedAt:   now,
		buffer:      NewRingBuffer(capacity),
		ready:       make(chan struct{}, 1),
	}
}

// Ready is signalled when events are buffered for the session.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

func (s *Session) Pending() int {
	return s.buffer.Len()
}

func (s *Session) push(event CommitEvent) (dropped bool) {
	before := s.buffer.Dropped()
	s.buffer.Enqueue(event)
	select {
	case s.ready <- struct{}{}:
	default:
	}
	return s.buffer.Dropped() > before
}

// drain clears the ready signal and returns the buffered events.
func (s *Session) drain() []CommitEvent {
	select {
	case <-s.ready:
	default:
	}
	return s.buffer.Drain()
}

// ParseUserAgent renders a user agent as "Browser on OS" for session
// listings.
func ParseUserAgent(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "Unknown Device"
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := ua.OS()
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser) + " on " + strings.TrimSpace(os)
}
