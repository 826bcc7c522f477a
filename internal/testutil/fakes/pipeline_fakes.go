package fakes

import (
	"context"
	"errors"
	"sync"

	"github.com/relaycrm/relaycrm/internal/models"
)

// FakeEmailSender captures sent emails and can simulate failures.
type FakeEmailSender struct {
	mu       sync.Mutex
	Sent     []SentEmail
	FailNext bool
}

// SentEmail records one captured send.
type SentEmail struct {
	Recipient string
	Template  string
}

func (f *FakeEmailSender) Send(_ context.Context, recipient, template string, _ map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNext {
		f.FailNext = false
		return errors.New("email send failed")
	}
	f.Sent = append(f.Sent, SentEmail{Recipient: recipient, Template: template})
	return nil
}

// FakeNotifier captures outbound webhook notifications.
type FakeNotifier struct {
	mu       sync.Mutex
	Notified []Notification
	FailNext bool
}

// Notification records one captured outbound delivery request.
type Notification struct {
	UserID    string
	WebhookID string
	EventType string
	Payload   map[string]interface{}
}

func (f *FakeNotifier) Notify(_ context.Context, userID, webhookID, eventType string, payload map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNext {
		f.FailNext = false
		return errors.New("delivery failed")
	}
	f.Notified = append(f.Notified, Notification{
		UserID:    userID,
		WebhookID: webhookID,
		EventType: eventType,
		Payload:   payload,
	})
	return nil
}

// FakePublisher captures mirrored trigger events and can simulate failures.
type FakePublisher struct {
	mu       sync.Mutex
	Events   []models.TriggerEvent
	FailNext bool
}

func (f *FakePublisher) Publish(_ context.Context, event models.TriggerEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNext {
		f.FailNext = false
		return errors.New("publish failed")
	}
	f.Events = append(f.Events, event)
	return nil
}

// FakeDispatcher captures detached dispatches from the inbound gateway.
type FakeDispatcher struct {
	mu     sync.Mutex
	Events []models.TriggerEvent
}

func (f *FakeDispatcher) DispatchDetached(event models.TriggerEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = append(f.Events, event)
}

// Dispatched returns the captured events.
func (f *FakeDispatcher) Dispatched() []models.TriggerEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TriggerEvent(nil), f.Events...)
}

// CountingLimiter is a deterministic in-memory fixed-window limiter.
type CountingLimiter struct {
	mu     sync.Mutex
	Limit  int64
	counts map[string]int64
}

func NewCountingLimiter(limit int64) *CountingLimiter {
	return &CountingLimiter{Limit: limit, counts: make(map[string]int64)}
}

func (l *CountingLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[key]++
	return l.counts[key] <= l.Limit, nil
}
