package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	"github.com/google/uuid"
)

// ApologyText is shown in place of a reply when the provider fails.
const ApologyText = "抱歉，我好像稍微走神了，请再试一次。"

const errLoggerKey = "err"

var errEmptyReply = errors.New("provider returned an empty reply")

// Controller drives a single chat widget. It owns the widget's generation state and its live message
// list, and reports every change to its Sink.
//
// At most one generation cycle runs at a time. A cycle, once started, always runs to completion: it is
// detached from the context of the submit that started it and has no abort path.
type Controller struct {
	id       string
	provider Provider
	sink     Sink
	journal  Journal
	logger   *slog.Logger

	mu         sync.Mutex
	state      State
	welcome    bool
	messages   []models.Message
	seq        uint64
	lastActive time.Time
	// sessions counts the pages currently streaming this widget's changes.
	sessions int

	// done is closed when the latest generation cycle completes.
	done chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithSink sets the sink the controller renders through. Without it, changes are only visible through
// Messages.
func WithSink(sink Sink) Option {
	return func(c *Controller) {
		if sink != nil {
			c.sink = sink
		}
	}
}

// WithJournal sets the journal failed cycles are recorded to.
func WithJournal(journal Journal) Option {
	return func(c *Controller) {
		c.journal = journal
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController creates an idle widget with its welcome panel visible and an empty message list.
func NewController(id string, provider Provider, opts ...Option) *Controller {
	c := &Controller{
		id:         id,
		provider:   provider,
		sink:       noopSink{},
		logger:     slog.Default(),
		welcome:    true,
		lastActive: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("module", "widget"), slog.String("widgetID", id))
	return c
}

// ID returns the widget ID.
func (c *Controller) ID() string {
	return c.id
}

// Submit admits text typed into the widget. It does nothing and returns false if the text is blank or a
// reply is still pending. Otherwise it hides the welcome panel, appends the user message, clears and
// disables the input, starts the generation cycle in the background and returns true.
func (c *Controller) Submit(ctx context.Context, text string) bool {
	prompt := strings.TrimSpace(text)
	if prompt == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateGenerating {
		c.logger.Debug("Submit ignored while generating")
		return false
	}

	c.lastActive = time.Now()
	if c.welcome {
		c.welcome = false
		c.sink.HideWelcome()
	}

	c.appendLocked(models.Message{
		ID:        c.nextIDLocked("msg"),
		Role:      models.RoleUser,
		Text:      prompt,
		Timestamp: time.Now(),
	})
	c.sink.ClearInput()

	c.state = StateGenerating
	c.sink.SetInputEnabled(false, false)

	done := make(chan struct{})
	c.done = done
	go func() {
		defer close(done)
		c.generateResponse(context.WithoutCancel(ctx), prompt)
	}()

	return true
}

// generateResponse shows a placeholder, waits for the provider and swaps the placeholder for the reply,
// or for ApologyText if the provider failed. It always leaves the widget idle with its input enabled.
func (c *Controller) generateResponse(ctx context.Context, prompt string) {
	c.mu.Lock()
	loadingID := c.nextIDLocked("loading")
	c.appendLocked(models.Message{
		ID:        loadingID,
		Role:      models.RoleAssistant,
		ElementID: loadingID,
		Loading:   true,
		Timestamp: time.Now(),
	})
	c.mu.Unlock()

	reply, err := c.generate(ctx, prompt)
	if err != nil {
		c.logger.Error("Failed to generate response", slog.String(errLoggerKey, err.Error()))
		c.recordFailure(ctx, prompt, err)
		reply = ApologyText
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeLocked(loadingID)
	c.appendLocked(models.Message{
		ID:        c.nextIDLocked("msg"),
		Role:      models.RoleAssistant,
		Text:      reply,
		Timestamp: time.Now(),
	})

	c.state = StateIdle
	c.lastActive = time.Now()
	c.sink.SetInputEnabled(true, true)
}

// generate calls the provider, turning a panic or an empty reply into an error so the cycle can recover.
func (c *Controller) generate(ctx context.Context, prompt string) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panicked: %v", r)
		}
	}()

	reply, err = c.provider.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", errEmptyReply
	}
	return reply, nil
}

func (c *Controller) recordFailure(ctx context.Context, prompt string, err error) {
	if c.journal == nil {
		return
	}

	provider := ""
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		provider = netErr.Provider
	}

	f := Failure{
		ID:           uuid.New().String(),
		WidgetID:     c.id,
		Provider:     provider,
		PromptLength: len([]rune(prompt)),
		Error:        err.Error(),
		Timestamp:    time.Now(),
	}
	if err := c.journal.Record(ctx, f); err != nil {
		c.logger.Error("Failed to record failure", slog.String(errLoggerKey, err.Error()))
	}
}

// Wait blocks until the pending generation cycle, if any, has completed.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

// State returns the current generation state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// WelcomeVisible reports whether the welcome panel is still shown.
func (c *Controller) WelcomeVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.welcome
}

// Sessions returns the number of pages currently streaming the widget's changes.
func (c *Controller) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions
}

// Messages returns a copy of the live message list, placeholder included.
func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.messages)
}

// idleFor reports whether the widget is idle, has no attached session and has seen no activity for at
// least d.
func (c *Controller) idleFor(now time.Time, d time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateIdle && c.sessions == 0 && now.Sub(c.lastActive) >= d
}

func (c *Controller) attach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions++
	c.lastActive = time.Now()
}

func (c *Controller) detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions--
	c.lastActive = time.Now()
}

func (c *Controller) nextIDLocked(prefix string) string {
	c.seq++
	return fmt.Sprintf("%s-%d", prefix, c.seq)
}

func (c *Controller) appendLocked(msg models.Message) {
	c.messages = append(c.messages, msg)
	c.sink.Append(msg)
}

func (c *Controller) removeLocked(elementID string) {
	c.messages = slices.DeleteFunc(c.messages, func(m models.Message) bool {
		return m.Loading && m.ElementID == elementID
	})
	c.sink.Remove(elementID)
}
