package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/widget"
)

// DefaultMockResponses are the canned supportive replies the Mock provider chooses from.
var DefaultMockResponses = []string{
	"我听到了你的心声。这听起来确实不容易，但你处理得很好。",
	"你能告诉我更多关于这种感觉的细节吗？我就在这里陪着你。",
	"有时候，深呼吸一下会好很多。你现在感觉身体哪里比较紧绷吗？",
	"这是一个非常深刻的洞察。谢谢你愿意信任我并分享这些。",
}

// DefaultMockDelay stands in for the latency of a real provider.
const DefaultMockDelay = 1500 * time.Millisecond

const mockProviderName = "mock"

// Mock is a Provider that waits a fixed delay and then returns one of a fixed set of replies, chosen
// uniformly at random from a seeded source.
type Mock struct {
	delay     time.Duration
	responses []string
	failWith  error

	mu  sync.Mutex
	rng *rand.Rand
}

// MockOption configures a Mock.
type MockOption func(*Mock)

// WithMockDelay sets the delay before each reply.
func WithMockDelay(d time.Duration) MockOption {
	return func(m *Mock) {
		m.delay = d
	}
}

// WithMockResponses replaces the candidate replies.
func WithMockResponses(responses ...string) MockOption {
	return func(m *Mock) {
		m.responses = slices.Clone(responses)
	}
}

// WithMockSeed makes the choice of replies deterministic.
func WithMockSeed(seed uint64) MockOption {
	return func(m *Mock) {
		m.rng = rand.New(rand.NewPCG(seed, seed))
	}
}

// WithMockFailure makes every call fail with err after the delay.
func WithMockFailure(err error) MockOption {
	return func(m *Mock) {
		m.failWith = err
	}
}

// NewMock creates a Mock with DefaultMockDelay and DefaultMockResponses unless overridden. It returns an
// error if the candidate list ends up empty.
func NewMock(opts ...MockOption) (*Mock, error) {
	seed := uint64(time.Now().UnixNano())
	m := &Mock{
		delay:     DefaultMockDelay,
		responses: slices.Clone(DefaultMockResponses),
		rng:       rand.New(rand.NewPCG(seed, seed)),
	}
	for _, opt := range opts {
		opt(m)
	}

	if len(m.responses) == 0 {
		return nil, errors.New("mock provider needs at least one response")
	}
	return m, nil
}

// Generate implements widget.Provider. The prompt is ignored.
func (m *Mock) Generate(ctx context.Context, _ string) (string, error) {
	timer := time.NewTimer(m.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", &widget.NetworkError{Provider: mockProviderName, Err: ctx.Err()}
	case <-timer.C:
	}

	if m.failWith != nil {
		return "", &widget.NetworkError{Provider: mockProviderName, Err: m.failWith}
	}

	m.mu.Lock()
	i := m.rng.IntN(len(m.responses))
	m.mu.Unlock()

	return m.responses[i], nil
}
