// Package push delivers agency notifications and manages topic membership
// through a pluggable push provider.
package push

import (
	"context"

	"github.com/UnknownOlympus/dispatch/internal/models"
)

// Message is a notification addressed to a topic.
type Message struct {
	Topic string
	Title string
	Body  string
	Data  map[string]string
}

// Provider is a push channel able to fan out messages to topic members.
type Provider interface {
	// Send delivers msg to every member of msg.Topic and returns the provider message ID.
	Send(ctx context.Context, msg Message) (string, error)
	Subscribe(ctx context.Context, tokens []string, topic string) (models.TopicResult, error)
	Unsubscribe(ctx context.Context, tokens []string, topic string) (models.TopicResult, error)
}
