package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/chat-widget/internal/widget"
)

// HandleChats accepts a message typed into a widget through an HTTP POST with the form fields
// "widget_id" and "message".
//
// The handler never renders anything itself: the widget publishes the user bubble, the placeholder and
// the reply through its SSE stream. It answers 204 No Content both when the message is accepted and
// when it is ignored, which happens for blank text and while a reply is still pending. Unknown widgets
// get 404 and methods other than POST get 405.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	widgetID := r.FormValue("widget_id")
	c, err := m.widgets.Get(widgetID)
	if err != nil {
		if errors.Is(err, widget.ErrUnknownWidget) {
			m.logger.Warn("Unknown widget", slog.String("widgetID", widgetID))
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		m.logger.Error("Failed to get widget", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !c.Submit(r.Context(), r.FormValue("message")) {
		m.logger.Debug("Message ignored", slog.String("widgetID", widgetID))
	}

	w.WriteHeader(http.StatusNoContent)
}
