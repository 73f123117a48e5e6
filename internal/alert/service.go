// Package alert records credit-limit utilization alerts and optionally
// pushes them to a Telegram chat.
package alert

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/paywatch/internal/logger"
	"gitlab.com/yelinaung/paywatch/internal/models"
)

// Store persists alerts.
type Store interface {
	Create(ctx context.Context, alert *models.Alert) error
	ListByUser(ctx context.Context, userID int64, unreadOnly bool) ([]models.Alert, error)
	MarkRead(ctx context.Context, id, userID int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, id, userID int64) error
	CountUnread(ctx context.Context, userID int64) (int, error)
}

// Notifier delivers an alert outside the application.
type Notifier interface {
	Notify(ctx context.Context, alert *models.Alert) error
}

// Service raises alerts when a card's utilization crosses the threshold.
type Service struct {
	store     Store
	threshold decimal.Decimal
	notifier  Notifier
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier pushes every recorded alert through n.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// NewService creates an alert service. threshold is a percentage of the
// credit limit.
func NewService(store Store, threshold decimal.Decimal, opts ...Option) *Service {
	s := &Service{store: store, threshold: threshold}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CardUpdated records a credit limit alert when card has reached the threshold.
func (s *Service) CardUpdated(ctx context.Context, card *models.Card) error {
	utilization := card.Utilization()
	if utilization.LessThan(s.threshold) {
		return nil
	}

	cardID := card.ID
	a := &models.Alert{
		UserID:    card.UserID,
		Type:      models.AlertTypeCreditLimit,
		Title:     fmt.Sprintf("Credit Limit Warning: %s", card.Name),
		Message:   fmt.Sprintf("Your %s has reached %s%% of its credit limit.", card.Name, utilization.String()),
		RelatedID: &cardID,
	}
	if err := s.store.Create(ctx, a); err != nil {
		return err
	}

	logger.Log.Info().
		Str("user_hash", logger.HashUserID(card.UserID)).
		Int64("card_id", card.ID).
		Str("utilization", utilization.String()).
		Msg("Credit limit alert raised")

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, a); err != nil {
			// The alert is stored; a failed push is not worth failing the caller over.
			logger.Log.Warn().Err(err).Int64("alert_id", a.ID).Msg("Failed to push alert")
		}
	}
	return nil
}

// List returns the owner's alerts, newest first.
func (s *Service) List(ctx context.Context, ownerID int64, unreadOnly bool) ([]models.Alert, error) {
	return s.store.ListByUser(ctx, ownerID, unreadOnly)
}

// MarkRead flags one alert as read.
func (s *Service) MarkRead(ctx context.Context, ownerID, alertID int64) error {
	return s.store.MarkRead(ctx, alertID, ownerID)
}

// MarkAllRead flags all of the owner's alerts as read.
func (s *Service) MarkAllRead(ctx context.Context, ownerID int64) (int64, error) {
	return s.store.MarkAllRead(ctx, ownerID)
}

// Delete removes one alert.
func (s *Service) Delete(ctx context.Context, ownerID, alertID int64) error {
	return s.store.Delete(ctx, alertID, ownerID)
}

// CountUnread returns how many alerts the owner has not read.
func (s *Service) CountUnread(ctx context.Context, ownerID int64) (int, error) {
	return s.store.CountUnread(ctx, ownerID)
}
