// Package handlers contains HTTP handler interfaces, implementations and middleware.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLATFORM EVENT INGESTION
// The EduForge platform pushes learner activity over a webhook. Each
// payload carries one event envelope, routed here by its type to a
// registered handler that turns it into a progression command.
// ══════════════════════════════════════════════════════════════════════════════

// PlatformEvent represents an activity event pushed by the platform.
type PlatformEvent struct {
	// EventID is the platform-assigned event ID, reused as the ledger
	// idempotency key so webhook redeliveries never double-credit.
	EventID string `json:"event_id"`

	// Type names the activity: "module.completed", "quiz.passed",
	// "practical.approved", "group.joined".
	Type string `json:"type"`

	// LearnerID is the platform ID of the acting learner.
	LearnerID string `json:"learner_id"`

	// OccurredAt is when the activity happened on the platform.
	OccurredAt time.Time `json:"occurred_at"`

	// Data carries type-specific fields (xp amount, entity IDs).
	Data map[string]interface{} `json:"data,omitempty"`
}

// GetString returns a string field from Data, or "".
func (e *PlatformEvent) GetString(key string) string {
	v, ok := e.Data[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetInt returns a numeric field from Data, or 0.
// JSON numbers decode as float64, so both forms are accepted.
func (e *PlatformEvent) GetInt(key string) int {
	switch v := e.Data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// INGEST HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// IngestHandler defines the interface for handling platform webhooks.
type IngestHandler interface {
	// HandlePlatformEvent processes one platform webhook payload.
	HandlePlatformEvent(ctx context.Context, payload []byte) error
}

// IngestFunc handles a single platform event of a specific type.
type IngestFunc func(ctx context.Context, event *PlatformEvent) error

// PlatformIngestHandler implements IngestHandler with per-type routing.
type PlatformIngestHandler struct {
	mu             sync.RWMutex
	typeHandlers   map[string]IngestFunc
	defaultHandler IngestFunc
	errorHandler   func(error)
}

// NewPlatformIngestHandler creates a new platform ingest handler.
func NewPlatformIngestHandler() *PlatformIngestHandler {
	return &PlatformIngestHandler{
		typeHandlers: make(map[string]IngestFunc),
	}
}

// Register registers a handler for a specific event type.
func (h *PlatformIngestHandler) Register(eventType string, handler IngestFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.typeHandlers[eventType] = handler
}

// RegisterDefault registers a fallback handler for unrecognized types.
// Without one, unknown types are acknowledged and dropped.
func (h *PlatformIngestHandler) RegisterDefault(handler IngestFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.defaultHandler = handler
}

// SetErrorHandler sets the error handler.
func (h *PlatformIngestHandler) SetErrorHandler(handler func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errorHandler = handler
}

// HandlePlatformEvent parses the payload and routes it by event type.
func (h *PlatformIngestHandler) HandlePlatformEvent(ctx context.Context, payload []byte) error {
	var event PlatformEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to parse platform event: %w", err)
	}

	if event.Type == "" {
		return fmt.Errorf("platform event has no type")
	}

	return h.processEvent(ctx, &event)
}

// processEvent routes the event to the appropriate handler.
func (h *PlatformIngestHandler) processEvent(ctx context.Context, event *PlatformEvent) error {
	h.mu.RLock()
	handler, ok := h.typeHandlers[event.Type]
	if !ok {
		handler = h.defaultHandler
	}
	errorHandler := h.errorHandler
	h.mu.RUnlock()

	if handler == nil {
		return nil
	}

	err := handler(ctx, event)
	if err != nil && errorHandler != nil {
		errorHandler(err)
	}
	return err
}

// RegisteredTypes returns the event types with a dedicated handler.
func (h *PlatformIngestHandler) RegisteredTypes() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	types := make([]string, 0, len(h.typeHandlers))
	for t := range h.typeHandlers {
		types = append(types, t)
	}
	return types
}

// NoopIngestHandler discards all platform events.
type NoopIngestHandler struct{}

// NewNoopIngestHandler creates a new noop ingest handler.
func NewNoopIngestHandler() *NoopIngestHandler {
	return &NoopIngestHandler{}
}

// HandlePlatformEvent is a no-op.
func (n *NoopIngestHandler) HandlePlatformEvent(ctx context.Context, payload []byte) error {
	return nil
}
