// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"log/slog"
	"sync"
)

// EventKind identifies a change notification.
type EventKind string

const (
	// EventRecordAdded fires after a record and its projection are
	// committed.
	EventRecordAdded EventKind = "record-added"

	// EventRecordDeleted fires after a record is removed, whether by
	// an explicit delete or by cleanup.
	EventRecordDeleted EventKind = "record-deleted"

	// EventQuotaChanged fires when the quota monitor observes a
	// status transition or completes a cleanup pass.
	EventQuotaChanged EventKind = "quota-changed"
)

// Event is a change notification delivered to subscribers.
type Event struct {
	Kind EventKind

	// RecordID is set for record-added and record-deleted.
	RecordID string

	// Detail carries event-specific context: the quota status string
	// for quota-changed, empty otherwise.
	Detail string
}

// Events is a subscription registry. Handlers run synchronously on
// the goroutine that emitted the event, in registration order; a
// panicking handler is recovered and logged so it cannot prevent
// later handlers from running.
type Events struct {
	mu       sync.Mutex
	logger   *slog.Logger
	handlers map[int]func(Event)
	nextID   int
	order    []int
}

// NewEvents creates an empty registry. logger may be nil.
func NewEvents(logger *slog.Logger) *Events {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Events{
		logger:   logger,
		handlers: make(map[int]func(Event)),
	}
}

// Subscribe registers a handler and returns its unsubscribe function.
// Unsubscribing twice is a no-op.
func (e *Events) Subscribe(handler func(Event)) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.handlers[id] = handler
	e.order = append(e.order, id)
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.handlers, id)
		for i, existing := range e.order {
			if existing == id {
				e.order = append(e.order[:i], e.order[i+1:]...)
				break
			}
		}
	}
}

// Emit delivers event to every current subscriber.
func (e *Events) Emit(event Event) {
	e.mu.Lock()
	handlers := make([]func(Event), 0, len(e.order))
	for _, id := range e.order {
		if handler, ok := e.handlers[id]; ok {
			handlers = append(handlers, handler)
		}
	}
	e.mu.Unlock()

	for _, handler := range handlers {
		e.deliver(handler, event)
	}
}

func (e *Events) deliver(handler func(Event), event Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			e.logger.Error("event handler panicked",
				"event", string(event.Kind),
				"record_id", event.RecordID,
				"panic", recovered,
			)
		}
	}()
	handler(event)
}
