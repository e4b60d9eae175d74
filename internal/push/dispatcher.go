package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/dispatch/internal/apperr"
	"github.com/UnknownOlympus/dispatch/internal/metrics"
	"github.com/UnknownOlympus/dispatch/internal/models"
	"github.com/UnknownOlympus/dispatch/internal/topic"
)

// DefaultTimeout bounds a provider call when no timeout is configured.
const DefaultTimeout = 5 * time.Second

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Result is the outcome of a notification attempt.
type Result struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Dispatcher sends agency notifications and maintains topic membership
// through a Provider. Every provider call is bounded by the dispatcher timeout.
type Dispatcher struct {
	log      *slog.Logger
	provider Provider
	metrics  *metrics.Metrics
	timeout  time.Duration
}

// NewDispatcher creates a Dispatcher. A non-positive timeout falls back to DefaultTimeout.
func NewDispatcher(log *slog.Logger, provider Provider, m *metrics.Metrics, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Dispatcher{
		log:      log,
		provider: provider,
		metrics:  m,
		timeout:  timeout,
	}
}

// NotifyAgency sends a notification to every tablet subscribed to the agency topic.
// It never fails: provider errors and timeouts are reported in the Result.
func (d *Dispatcher) NotifyAgency(
	ctx context.Context,
	agencyID int,
	title, body string,
	data map[string]string,
) Result {
	const op = "push.NotifyAgency"
	name := topic.Name(agencyID)
	log := d.log.With("op", op, "agency_id", agencyID, "topic", name)

	notificationType := data["type"]
	if notificationType == "" {
		notificationType = "generic"
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	messageID, err := d.provider.Send(ctx, Message{Topic: name, Title: title, Body: body, Data: data})
	d.metrics.PushDuration.WithLabelValues("send").Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("push timed out after %s: %w", d.timeout, err)
		}
		d.metrics.Notifications.WithLabelValues(notificationType, outcomeFailure).Inc()
		log.WarnContext(ctx, "Failed to notify agency", "type", notificationType, "error", err)
		return Result{Success: false, Error: err.Error()}
	}

	d.metrics.Notifications.WithLabelValues(notificationType, outcomeSuccess).Inc()
	log.InfoContext(ctx, "Agency notified", "type", notificationType, "message_id", messageID)

	return Result{Success: true, MessageID: messageID}
}

// Subscribe adds a single token to the agency topic.
func (d *Dispatcher) Subscribe(ctx context.Context, token string, agencyID int) (models.TopicResult, error) {
	return d.SubscribeAll(ctx, []string{token}, agencyID)
}

// SubscribeAll adds a batch of tokens to the agency topic.
func (d *Dispatcher) SubscribeAll(ctx context.Context, tokens []string, agencyID int) (models.TopicResult, error) {
	return d.membership(ctx, "subscribe", d.provider.Subscribe, tokens, agencyID)
}

// Unsubscribe removes a single token from the agency topic.
func (d *Dispatcher) Unsubscribe(ctx context.Context, token string, agencyID int) (models.TopicResult, error) {
	return d.membership(ctx, "unsubscribe", d.provider.Unsubscribe, []string{token}, agencyID)
}

type membershipFunc func(ctx context.Context, tokens []string, topic string) (models.TopicResult, error)

func (d *Dispatcher) membership(
	ctx context.Context,
	operation string,
	call membershipFunc,
	tokens []string,
	agencyID int,
) (models.TopicResult, error) {
	name := topic.Name(agencyID)
	log := d.log.With("op", "push."+operation, "agency_id", agencyID, "topic", name, "tokens", len(tokens))

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	result, err := call(ctx, tokens, name)
	d.metrics.PushDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		err = fmt.Errorf("%w: failed to %s %s: %w", apperr.ErrDispatch, operation, name, err)
	case result.FailureCount > 0:
		err = fmt.Errorf("%w: failed to %s %d of %d tokens on %s",
			apperr.ErrDispatch, operation, result.FailureCount, len(tokens), name)
	}

	if err != nil {
		d.metrics.TopicOperations.WithLabelValues(operation, outcomeFailure).Inc()
		log.WarnContext(ctx, "Topic operation failed", "error", err)
		return result, err
	}

	d.metrics.TopicOperations.WithLabelValues(operation, outcomeSuccess).Inc()
	log.InfoContext(ctx, "Topic operation succeeded", "success_count", result.SuccessCount)

	return result, nil
}
