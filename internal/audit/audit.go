// Package audit delivers append-only audit events to one or more sinks.
package audit

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/store"
	"github.com/Omarrio321/ElectronicsPOS/internal/xid"
)

type Sink interface {
	Emit(ctx context.Context, event domain.AuditEvent) error
}

type SinkFunc func(ctx context.Context, event domain.AuditEvent) error

func (f SinkFunc) Emit(ctx context.Context, event domain.AuditEvent) error {
	return f(ctx, event)
}

// Stamp fills in the id and timestamp so every sink records the same values.
func Stamp(event domain.AuditEvent, now time.Time) domain.AuditEvent {
	if event.ID == "" {
		event.ID = xid.New("audit")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now.UTC()
	}
	return event
}

// StoreSink appends events to the audit_logs table of a repository.
type StoreSink struct {
	log store.AuditLog
}

func NewStoreSink(log store.AuditLog) *StoreSink {
	return &StoreSink{log: log}
}

func (s *StoreSink) Emit(ctx context.Context, event domain.AuditEvent) error {
	return s.log.CreateAuditLog(ctx, event)
}

// Multi emits to every sink and joins their errors.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, event domain.AuditEvent) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Discard struct{}

func (Discard) Emit(context.Context, domain.AuditEvent) error { return nil }

// Recorder keeps emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (r *Recorder) Emit(_ context.Context, event domain.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.Detail = maps.Clone(event.Detail)
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []domain.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}
