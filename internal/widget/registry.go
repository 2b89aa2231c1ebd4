package widget

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry holds independent widget instances, one per page load. Instances share the provider and the
// journal but nothing else.
type Registry struct {
	provider Provider
	sinks    SinkFactory
	opts     []Option
	logger   *slog.Logger

	mu      sync.RWMutex
	widgets map[string]*Controller
}

// NewRegistry creates an empty registry. Every widget it creates gets the sink built by sinks, if sinks
// is not nil, and the given options.
func NewRegistry(provider Provider, sinks SinkFactory, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		provider: provider,
		sinks:    sinks,
		opts:     append(opts, WithLogger(logger)),
		logger:   logger.With(slog.String("module", "registry")),
		widgets:  make(map[string]*Controller),
	}
}

// New creates and registers a fresh widget.
func (r *Registry) New() *Controller {
	id := uuid.New().String()

	opts := r.opts
	if r.sinks != nil {
		opts = append(opts[:len(opts):len(opts)], WithSink(r.sinks(id)))
	}
	c := NewController(id, r.provider, opts...)

	r.mu.Lock()
	r.widgets[id] = c
	r.mu.Unlock()

	r.logger.Debug("Widget created", slog.String("widgetID", id))
	return c
}

// Get returns the widget with the given ID, or ErrUnknownWidget.
func (r *Registry) Get(id string) (*Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.widgets[id]
	if !ok {
		return nil, ErrUnknownWidget
	}
	return c, nil
}

// Attach marks the widget with the given ID as watched by a page, which keeps it from being swept until
// the returned release func is called. It returns ErrUnknownWidget if there is no such widget.
func (r *Registry) Attach(id string) (*Controller, func(), error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.widgets[id]
	if !ok {
		return nil, nil, ErrUnknownWidget
	}
	c.attach()

	var once sync.Once
	return c, func() { once.Do(c.detach) }, nil
}

// Len returns the number of live widgets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.widgets)
}

// Sweep drops widgets that are idle and have seen no activity for at least idleFor. Widgets with a
// pending reply or an attached page are never dropped. It returns the number of widgets dropped.
func (r *Registry) Sweep(idleFor time.Duration) int {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for id, c := range r.widgets {
		if c.idleFor(now, idleFor) {
			delete(r.widgets, id)
			dropped++
		}
	}
	if dropped > 0 {
		r.logger.Debug("Swept idle widgets", slog.Int("count", dropped))
	}
	return dropped
}

// Run sweeps the registry every interval until ctx is done. A non-positive interval disables sweeping.
func (r *Registry) Run(ctx context.Context, interval, idleFor time.Duration) {
	if interval <= 0 {
		r.logger.Info("Widget sweeping disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(idleFor)
		}
	}
}

// Wait blocks until every pending generation cycle has completed.
func (r *Registry) Wait() {
	r.mu.RLock()
	widgets := make([]*Controller, 0, len(r.widgets))
	for _, c := range r.widgets {
		widgets = append(widgets, c)
	}
	r.mu.RUnlock()

	for _, c := range widgets {
		c.Wait()
	}
}
