package topic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/dispatch/internal/models"
)

// Membership changes the members of agency topics at the push provider.
type Membership interface {
	Subscribe(ctx context.Context, token string, agencyID int) (models.TopicResult, error)
	SubscribeAll(ctx context.Context, tokens []string, agencyID int) (models.TopicResult, error)
	Unsubscribe(ctx context.Context, token string, agencyID int) (models.TopicResult, error)
}

// TokenStore persists the push tokens of tablets.
type TokenStore interface {
	SetTabletToken(ctx context.Context, tabletID int, token *string) error
	ListAgencyTokens(ctx context.Context, agencyID int) ([]string, error)
}

// Directory keeps the provider-side topic membership and the tokens stored on
// tablets consistent: a token is persisted only once the provider accepted it.
type Directory struct {
	log        *slog.Logger
	store      TokenStore
	membership Membership
}

// NewDirectory creates a Directory.
func NewDirectory(log *slog.Logger, store TokenStore, membership Membership) *Directory {
	return &Directory{log: log, store: store, membership: membership}
}

// Join subscribes token to the tablet's agency topic and stores it on the tablet,
// replacing any previous token. A replaced token is unsubscribed best-effort.
func (d *Directory) Join(ctx context.Context, tablet models.Tablet, token string) error {
	const op = "topic.Join"
	log := d.log.With("op", op, "tablet_id", tablet.ID, "agency_id", tablet.AgencyID)

	if _, err := d.membership.Subscribe(ctx, token, tablet.AgencyID); err != nil {
		return fmt.Errorf("failed to join agency topic: %w", err)
	}

	if err := d.store.SetTabletToken(ctx, tablet.ID, &token); err != nil {
		return fmt.Errorf("failed to store push token: %w", err)
	}

	if tablet.HasToken() && *tablet.PushToken != token {
		if _, err := d.membership.Unsubscribe(ctx, *tablet.PushToken, tablet.AgencyID); err != nil {
			log.WarnContext(ctx, "Failed to unsubscribe replaced token", "error", err)
		}
	}

	log.InfoContext(ctx, "Tablet joined agency topic", "topic", Name(tablet.AgencyID))
	return nil
}

// Leave unsubscribes token from the tablet's agency topic and clears the stored token.
func (d *Directory) Leave(ctx context.Context, tablet models.Tablet, token string) error {
	const op = "topic.Leave"

	if _, err := d.membership.Unsubscribe(ctx, token, tablet.AgencyID); err != nil {
		return fmt.Errorf("failed to leave agency topic: %w", err)
	}

	if err := d.store.SetTabletToken(ctx, tablet.ID, nil); err != nil {
		return fmt.Errorf("failed to clear push token: %w", err)
	}

	d.log.InfoContext(ctx, "Tablet left agency topic",
		"op", op, "tablet_id", tablet.ID, "topic", Name(tablet.AgencyID))
	return nil
}

// Move carries the stored token of a tablet that was reassigned from
// fromAgencyID to tablet.AgencyID: it joins the new agency topic and leaves
// the old one. Both calls are attempted even when one fails.
func (d *Directory) Move(ctx context.Context, tablet models.Tablet, fromAgencyID int) error {
	const op = "topic.Move"

	if !tablet.HasToken() || fromAgencyID == tablet.AgencyID {
		return nil
	}
	token := *tablet.PushToken

	var joinErr, leaveErr error
	if _, err := d.membership.Subscribe(ctx, token, tablet.AgencyID); err != nil {
		joinErr = fmt.Errorf("failed to join agency topic: %w", err)
	}
	if _, err := d.membership.Unsubscribe(ctx, token, fromAgencyID); err != nil {
		leaveErr = fmt.Errorf("failed to leave previous agency topic: %w", err)
	}
	if err := errors.Join(joinErr, leaveErr); err != nil {
		return err
	}

	d.log.InfoContext(ctx, "Tablet moved between agency topics", "op", op, "tablet_id", tablet.ID,
		"from", Name(fromAgencyID), "to", Name(tablet.AgencyID))
	return nil
}

// Members returns the push tokens stored on the tablets of an agency.
func (d *Directory) Members(ctx context.Context, agencyID int) ([]string, error) {
	tokens, err := d.store.ListAgencyTokens(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list topic members: %w", err)
	}

	return tokens, nil
}

// Resync subscribes every stored token of an agency again in one batch.
// It restores the provider-side topic after the provider lost it.
func (d *Directory) Resync(ctx context.Context, agencyID int) (models.TopicResult, error) {
	const op = "topic.Resync"

	tokens, err := d.Members(ctx, agencyID)
	if err != nil {
		return models.TopicResult{}, err
	}

	if len(tokens) == 0 {
		d.log.DebugContext(ctx, "No tokens to resync", "op", op, "agency_id", agencyID)
		return models.TopicResult{}, nil
	}

	result, err := d.membership.SubscribeAll(ctx, tokens, agencyID)
	if err != nil {
		return result, fmt.Errorf("failed to resync agency topic: %w", err)
	}

	d.log.InfoContext(ctx, "Agency topic resynced", "op", op, "agency_id", agencyID, "tokens", result.SuccessCount)
	return result, nil
}
