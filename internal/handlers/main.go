package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	chatwidget "github.com/MegaGrindStone/chat-widget"
	"github.com/MegaGrindStone/chat-widget/internal/widget"
	"github.com/tmaxmax/go-sse"
)

// Journal is the failure journal the handlers record to and read from.
type Journal interface {
	widget.Journal
	Failures(ctx context.Context, limit int) ([]widget.Failure, error)
}

// Main serves the chat widget. Every page load gets its own widget instance; the page learns about the
// widget's changes through a server-sent events stream scoped to that instance.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	widgets *widget.Registry
	journal Journal

	logger *slog.Logger
}

const (
	errLoggerKey = "err"

	// replayTTL bounds how long a published event can still be replayed to a page that subscribes late or
	// reconnects.
	replayTTL = 5 * time.Minute
)

// NewMain creates a Main that answers with provider. The journal may be nil, in which case failures are
// only logged and the failures endpoint reports not found.
func NewMain(provider widget.Provider, journal Journal, logger *slog.Logger) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		chatwidget.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	replayer, err := sse.NewValidReplayer(replayTTL, false)
	if err != nil {
		return Main{}, err
	}

	m := Main{
		sseSrv:    &sse.Server{Provider: &sse.Joe{Replayer: replayer}},
		templates: tmpl,
		journal:   journal,
		logger:    logger.With(slog.String("module", "main")),
	}

	var opts []widget.Option
	if journal != nil {
		opts = append(opts, widget.WithJournal(journal))
	}
	m.widgets = widget.NewRegistry(provider, m.newSink, logger, opts...)

	m.sseSrv.OnSession = m.onSession

	return m, nil
}

func (m Main) onSession(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	widgetID := r.URL.Query().Get("widget_id")
	if _, err := m.widgets.Get(widgetID); err != nil {
		m.logger.Warn("Rejected SSE session", slog.String("widgetID", widgetID))
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, false
	}

	// The default topic carries the shutdown broadcast.
	return []string{sse.DefaultTopic, widgetTopic(widgetID)}, true
}

func widgetTopic(widgetID string) string {
	return fmt.Sprintf("widget-%s", widgetID)
}

// Widget returns the live widget with the given ID.
func (m Main) Widget(id string) (*widget.Controller, error) {
	return m.widgets.Get(id)
}

// SweepWidgets drops idle widgets every interval until ctx is done.
func (m Main) SweepWidgets(ctx context.Context, interval, idleFor time.Duration) {
	m.widgets.Run(ctx, interval, idleFor)
}

// Shutdown waits for pending replies, then terminates the SSE server. It broadcasts a close message to
// all connected clients and waits up to 5 seconds for connections to terminate. After the timeout, any
// remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	waited := make(chan struct{})
	go func() {
		m.widgets.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		m.logger.Warn("Shutting down with replies still pending")
	}

	e := &sse.Message{ID: sse.ID("shutdown"), Type: closeSSEType}
	// We create a close event that complies with SSE spec requiring data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
