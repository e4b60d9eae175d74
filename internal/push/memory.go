package push

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/UnknownOlympus/dispatch/internal/models"
)

// MemoryProvider is an in-process Provider. It keeps topic members and sent
// messages in memory and is used for local runs and tests.
type MemoryProvider struct {
	mu           sync.Mutex
	topics       map[string]map[string]struct{}
	sent         []Message
	rejected     map[string]struct{}
	sendErr      error
	subscribeErr error
	seq          int
}

// NewMemoryProvider creates an empty MemoryProvider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		topics:   make(map[string]map[string]struct{}),
		rejected: make(map[string]struct{}),
	}
}

// FailSend makes every following Send return err. A nil err restores delivery.
func (p *MemoryProvider) FailSend(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendErr = err
}

// FailSubscribe makes every following Subscribe and Unsubscribe return err.
func (p *MemoryProvider) FailSubscribe(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribeErr = err
}

// RejectToken makes the provider count token as a failure in membership batches.
func (p *MemoryProvider) RejectToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejected[token] = struct{}{}
}

// Send records msg and returns a sequential message ID.
func (p *MemoryProvider) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sendErr != nil {
		return "", p.sendErr
	}

	p.seq++
	p.sent = append(p.sent, msg)

	return fmt.Sprintf("memory-%d", p.seq), nil
}

// Subscribe adds tokens to topic.
func (p *MemoryProvider) Subscribe(ctx context.Context, tokens []string, topic string) (models.TopicResult, error) {
	return p.apply(ctx, tokens, topic, func(members map[string]struct{}, token string) {
		members[token] = struct{}{}
	})
}

// Unsubscribe removes tokens from topic.
func (p *MemoryProvider) Unsubscribe(ctx context.Context, tokens []string, topic string) (models.TopicResult, error) {
	return p.apply(ctx, tokens, topic, func(members map[string]struct{}, token string) {
		delete(members, token)
	})
}

func (p *MemoryProvider) apply(
	ctx context.Context,
	tokens []string,
	topic string,
	change func(members map[string]struct{}, token string),
) (models.TopicResult, error) {
	if err := ctx.Err(); err != nil {
		return models.TopicResult{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.subscribeErr != nil {
		return models.TopicResult{}, p.subscribeErr
	}

	members, ok := p.topics[topic]
	if !ok {
		members = make(map[string]struct{})
		p.topics[topic] = members
	}

	var result models.TopicResult
	for _, token := range tokens {
		if _, bad := p.rejected[token]; bad {
			result.FailureCount++
			continue
		}
		change(members, token)
		result.SuccessCount++
	}

	return result, nil
}

// Members returns the sorted tokens subscribed to topic.
func (p *MemoryProvider) Members(topic string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	tokens := make([]string, 0, len(p.topics[topic]))
	for token := range p.topics[topic] {
		tokens = append(tokens, token)
	}
	slices.Sort(tokens)

	return tokens
}

// Sent returns a copy of the messages delivered so far.
func (p *MemoryProvider) Sent() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.sent)
}

// Ping always succeeds.
func (p *MemoryProvider) Ping(_ context.Context) error {
	return nil
}
