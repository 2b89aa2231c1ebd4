package handlers

import (
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/chat-widget/internal/models"
)

type homePageData struct {
	WidgetID       string
	LastEventID    string
	WelcomeVisible bool
	InputEnabled   bool
	Messages       []models.View
}

// HandleHome serves the widget page. Each call creates a fresh widget, so reloading the page starts over
// with the welcome panel and an empty message list.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
	case http.MethodHead:
		// Probes and crawlers get the headers without a widget being created for them.
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		return
	default:
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c := m.widgets.New()

	data := homePageData{
		WidgetID:       c.ID(),
		LastEventID:    readyEventID(c.ID()),
		WelcomeVisible: c.WelcomeVisible(),
		InputEnabled:   true,
		Messages:       models.RenderAll(c.Messages()),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to render home page", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}
