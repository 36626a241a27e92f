// Package events distributes progress events from the correction engine to
// observers (CLI progress output, web UI). Publishing is observational only;
// control flow never depends on a subscriber.
package events

import (
	"fmt"
	"sync"
	"time"
)

// ProgressEvent is one progress notification from a generation request.
type ProgressEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Common event types
const (
	EventTypeRequestStarted   = "request_started"
	EventTypeStageChanged     = "stage_changed"
	EventTypeIterationStarted = "iteration_started"
	EventTypeIssuesUpdated    = "issues_updated"
	EventTypeStepCompleted    = "step_completed"
	EventTypeStreamChunk      = "stream_chunk"
	EventTypeRequestCompleted = "request_completed"
	EventTypeError            = "error"
)

// EventBus manages event distribution between the engine and its observers.
type EventBus struct {
	subscribers map[string]chan ProgressEvent
	mutex       sync.RWMutex
	nextID      int64
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string]chan ProgressEvent),
	}
}

// Subscribe adds a new subscriber to the event bus.
func (eb *EventBus) Subscribe(name string) <-chan ProgressEvent {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	ch := make(chan ProgressEvent, 100) // Buffered channel
	eb.subscribers[name] = ch
	return ch
}

// Unsubscribe removes a subscriber from the event bus.
func (eb *EventBus) Unsubscribe(name string) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	if ch, exists := eb.subscribers[name]; exists {
		delete(eb.subscribers, name)
		close(ch)
	}
}

// Publish broadcasts an event to all subscribers. A slow subscriber with a
// full channel is skipped rather than blocking the engine.
func (eb *EventBus) Publish(eventType string, data any) {
	eb.mutex.Lock()
	eb.nextID++
	event := ProgressEvent{
		ID:        fmt.Sprintf("%s-%d", time.Now().Format("20060102-150405"), eb.nextID),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
	subscribers := make([]chan ProgressEvent, 0, len(eb.subscribers))
	for _, ch := range eb.subscribers {
		subscribers = append(subscribers, ch)
	}
	eb.mutex.Unlock()

	// Publish to all subscribers without holding the lock
	for _, ch := range subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Helper functions for creating specific event payloads

// RequestStartedEvent creates a request started payload.
func RequestStartedEvent(target, provider, model string) map[string]interface{} {
	return map[string]interface{}{
		"target":   target,
		"provider": provider,
		"model":    model,
	}
}

// StageChangedEvent creates a stage change payload. Progress is a percentage
// in [0,100].
func StageChangedEvent(stage, message string, progress int) map[string]interface{} {
	return map[string]interface{}{
		"stage":    stage,
		"message":  message,
		"progress": progress,
	}
}

// IterationStartedEvent creates an iteration start payload.
func IterationStartedEvent(iteration, maxIterations, issueCount int) map[string]interface{} {
	return map[string]interface{}{
		"iteration":      iteration,
		"max_iterations": maxIterations,
		"issue_count":    issueCount,
	}
}

// IssuesUpdatedEvent creates an issue list payload for UI display.
func IssuesUpdatedEvent(target string, issues []string, suggestions []string) map[string]interface{} {
	return map[string]interface{}{
		"target":      target,
		"issues":      issues,
		"suggestions": suggestions,
	}
}

// StepCompletedEvent creates a plan step completion payload.
func StepCompletedEvent(stepIndex int, description, status string) map[string]interface{} {
	return map[string]interface{}{
		"step_index":  stepIndex,
		"description": description,
		"status":      status, // "completed", "skipped", "failed"
	}
}

// StreamChunkEvent creates a stream chunk payload.
func StreamChunkEvent(chunk string) map[string]interface{} {
	return map[string]interface{}{
		"chunk": chunk,
	}
}

// RequestCompletedEvent creates a request completion payload.
func RequestCompletedEvent(status string, iterations, remainingIssues int, duration time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"status":           status, // "success", "partial", "cancelled"
		"iterations":       iterations,
		"remaining_issues": remainingIssues,
		"duration_ms":      duration.Milliseconds(),
	}
}

// ErrorEvent creates an error payload.
func ErrorEvent(message string, err error) map[string]interface{} {
	return map[string]interface{}{
		"message": message,
		"error":   err.Error(),
	}
}
