// Package fcm implements the push provider on Firebase Cloud Messaging.
package fcm

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/UnknownOlympus/dispatch/internal/models"
	"github.com/UnknownOlympus/dispatch/internal/push"
	"google.golang.org/api/option"
)

// Android and APNs presentation of order notifications on agency tablets.
const (
	androidIcon        = "ic_notification"
	androidColor       = "#f5a623"
	androidChannel     = "rfc_orders"
	androidClickAction = "OPEN_ORDER_ACTIVITY"
	apnsSound          = "default"
	apnsBadge          = 1
)

// MessagingClient is the subset of the Firebase messaging client used by the provider.
type MessagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
	UnsubscribeFromTopic(
		ctx context.Context, tokens []string, topic string,
	) (*messaging.TopicManagementResponse, error)
}

// Provider sends topic messages through FCM.
type Provider struct {
	log    *slog.Logger
	client MessagingClient
}

// New initialises the Firebase app from a service account file and returns a Provider.
func New(ctx context.Context, log *slog.Logger, credentialsFile, projectID string) (*Provider, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}

	log.InfoContext(ctx, "Firebase messaging initialized", "project_id", projectID)

	return NewWithClient(log, client), nil
}

// NewWithClient returns a Provider backed by an existing messaging client.
func NewWithClient(log *slog.Logger, client MessagingClient) *Provider {
	return &Provider{log: log, client: client}
}

// Send delivers msg to its topic.
func (p *Provider) Send(ctx context.Context, msg push.Message) (string, error) {
	messageID, err := p.client.Send(ctx, BuildMessage(msg))
	if err != nil {
		return "", fmt.Errorf("fcm send to %s: %w", msg.Topic, err)
	}

	return messageID, nil
}

// Subscribe adds tokens to topic.
func (p *Provider) Subscribe(ctx context.Context, tokens []string, topic string) (models.TopicResult, error) {
	resp, err := p.client.SubscribeToTopic(ctx, tokens, topic)
	if err != nil {
		return models.TopicResult{}, fmt.Errorf("fcm subscribe to %s: %w", topic, err)
	}

	return p.topicResult(ctx, "subscribe", topic, resp), nil
}

// Unsubscribe removes tokens from topic.
func (p *Provider) Unsubscribe(ctx context.Context, tokens []string, topic string) (models.TopicResult, error) {
	resp, err := p.client.UnsubscribeFromTopic(ctx, tokens, topic)
	if err != nil {
		return models.TopicResult{}, fmt.Errorf("fcm unsubscribe from %s: %w", topic, err)
	}

	return p.topicResult(ctx, "unsubscribe", topic, resp), nil
}

func (p *Provider) topicResult(
	ctx context.Context,
	operation, topic string,
	resp *messaging.TopicManagementResponse,
) models.TopicResult {
	if resp == nil {
		return models.TopicResult{}
	}

	for _, info := range resp.Errors {
		if info == nil {
			continue
		}
		p.log.DebugContext(ctx, "Token rejected by FCM",
			"operation", operation, "topic", topic, "index", info.Index, "reason", info.Reason)
	}

	return models.TopicResult{SuccessCount: resp.SuccessCount, FailureCount: resp.FailureCount}
}

// BuildMessage converts msg into an FCM topic message with the tablet
// Android and APNs presentation.
func BuildMessage(msg push.Message) *messaging.Message {
	badge := apnsBadge

	return &messaging.Message{
		Topic: msg.Topic,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Icon:        androidIcon,
				Color:       androidColor,
				ChannelID:   androidChannel,
				ClickAction: androidClickAction,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound:            apnsSound,
					Badge:            &badge,
					ContentAvailable: true,
				},
			},
		},
	}
}
