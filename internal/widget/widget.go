// Package widget implements the chat widget controller: admission of user input, the placeholder
// lifecycle and the generation cycle that turns a prompt into an assistant reply.
package widget

import (
	"context"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/models"
)

// Provider is the source of assistant replies. Implementations report failures as *NetworkError.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Sink receives every view change a controller makes, in the order the controller makes them.
// Implementations are called while the controller holds its lock, so they must not call back into the
// controller.
type Sink interface {
	HideWelcome()
	Append(msg models.Message)
	Remove(elementID string)
	ClearInput()
	// SetInputEnabled toggles the input and the send button. If focus is true the input should take
	// keyboard focus.
	SetInputEnabled(enabled, focus bool)
}

// SinkFactory builds the sink for the widget with the given ID.
type SinkFactory func(widgetID string) Sink

// Journal records failed generation cycles for diagnostics.
type Journal interface {
	Record(ctx context.Context, failure Failure) error
}

// Failure describes one failed generation cycle. The prompt itself is not kept, only its length.
type Failure struct {
	ID           string    `json:"id"`
	WidgetID     string    `json:"widgetId"`
	Provider     string    `json:"provider"`
	PromptLength int       `json:"promptLength"`
	Error        string    `json:"error"`
	Timestamp    time.Time `json:"timestamp"`
}

// State is the generation state of a widget.
type State int

const (
	// StateIdle accepts new submissions.
	StateIdle State = iota
	// StateGenerating rejects submissions until the pending reply is shown.
	StateGenerating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	default:
		return "unknown"
	}
}

type noopSink struct{}

func (noopSink) HideWelcome() {}
func (noopSink) Append(models.Message) {}
func (noopSink) Remove(string) {}
func (noopSink) ClearInput() {}
func (noopSink) SetInputEnabled(bool, bool) {}
