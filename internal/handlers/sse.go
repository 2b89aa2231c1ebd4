package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	"github.com/MegaGrindStone/chat-widget/internal/widget"
	"github.com/tmaxmax/go-sse"
)

// SSE event types for real-time updates.
var (
	readySSEType   = sse.Type("ready")
	welcomeSSEType = sse.Type("welcome")
	appendSSEType  = sse.Type("append")
	removeSSEType  = sse.Type("remove")
	clearSSEType   = sse.Type("clear")
	inputSSEType   = sse.Type("input")
	closeSSEType   = sse.Type("close")
)

type inputState struct {
	Enabled bool `json:"enabled"`
	Focus   bool `json:"focus"`
}

// sseSink publishes a widget's changes to the widget's SSE topic. Every event carries an ID of the form
// "<widgetID>-<n>", so a page can resume the stream from the last event it saw.
type sseSink struct {
	widgetID  string
	topic     string
	seq       *atomic.Uint64
	srv       *sse.Server
	templates *template.Template
	logger    *slog.Logger
}

// newSink creates the sink of a new widget and publishes its ready event. The page starts its stream
// after that event, so changes published before the page subscribes are replayed to it.
func (m Main) newSink(widgetID string) widget.Sink {
	s := sseSink{
		widgetID:  widgetID,
		topic:     widgetTopic(widgetID),
		seq:       &atomic.Uint64{},
		srv:       m.sseSrv,
		templates: m.templates,
		logger:    m.logger.With(slog.String("widgetID", widgetID)),
	}
	s.publishWithID(readyEventID(widgetID), readySSEType, "ready")
	return s
}

func readyEventID(widgetID string) string {
	return eventID(widgetID, 0)
}

func eventID(widgetID string, n uint64) string {
	return fmt.Sprintf("%s-%d", widgetID, n)
}

// HandleSSE streams the changes of the widget named by the "widget_id" query parameter. A page that has
// not received any event yet passes the ID to resume from as "last_event_id"; the Last-Event-ID header
// of a reconnecting page takes precedence. The widget is not swept while the stream is open.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	widgetID := r.URL.Query().Get("widget_id")
	_, release, err := m.widgets.Attach(widgetID)
	if err != nil {
		m.logger.Warn("Rejected SSE session", slog.String("widgetID", widgetID))
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer release()

	if lastID := r.URL.Query().Get("last_event_id"); lastID != "" && r.Header.Get("Last-Event-ID") == "" {
		r = r.Clone(r.Context())
		r.Header.Set("Last-Event-ID", lastID)
	}

	m.sseSrv.ServeHTTP(w, r)
}

func (s sseSink) HideWelcome() {
	s.publish(welcomeSSEType, "hide")
}

func (s sseSink) Append(msg models.Message) {
	var sb strings.Builder
	if err := s.templates.ExecuteTemplate(&sb, "message", models.Render(msg)); err != nil {
		s.logger.Error("Failed to render message",
			slog.String("message", msg.ID),
			slog.String(errLoggerKey, err.Error()))
		return
	}
	s.publish(appendSSEType, sb.String())
}

func (s sseSink) Remove(elementID string) {
	s.publish(removeSSEType, elementID)
}

func (s sseSink) ClearInput() {
	s.publish(clearSSEType, "input")
}

func (s sseSink) SetInputEnabled(enabled, focus bool) {
	data, err := json.Marshal(inputState{Enabled: enabled, Focus: focus})
	if err != nil {
		s.logger.Error("Failed to marshal input state", slog.String(errLoggerKey, err.Error()))
		return
	}
	s.publish(inputSSEType, string(data))
}

func (s sseSink) publish(typ sse.EventType, data string) {
	s.publishWithID(eventID(s.widgetID, s.seq.Add(1)), typ, data)
}

func (s sseSink) publishWithID(id string, typ sse.EventType, data string) {
	msg := sse.Message{
		ID:   sse.ID(id),
		Type: typ,
	}
	msg.AppendData(data)
	if err := s.srv.Publish(&msg, s.topic); err != nil {
		s.logger.Error("Failed to publish event",
			slog.String("type", typ.String()),
			slog.String(errLoggerKey, err.Error()))
	}
}
