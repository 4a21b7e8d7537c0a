package service

import (
	"context"
	"errors"
	"strings"

	"github.com/libaas-store/storefront/internal/domain"
	"github.com/libaas-store/storefront/internal/telemetry"
	"github.com/rs/zerolog"
)

// NewsletterService implements domain.NewsletterService
type NewsletterService struct {
	repo    domain.NewsletterRepository
	metrics *telemetry.Metrics
	log     zerolog.Logger
}

// NewNewsletterService creates a new newsletter service. metrics may be nil.
func NewNewsletterService(repo domain.NewsletterRepository, metrics *telemetry.Metrics, log zerolog.Logger) *NewsletterService {
	return &NewsletterService{
		repo:    repo,
		metrics: metrics,
		log:     log.With().Str("component", "newsletter").Logger(),
	}
}

// Subscribe validates email and stores an active website subscription.
// Validation runs on the address as given; the stored form is trimmed and lowercased.
func (s *NewsletterService) Subscribe(ctx context.Context, email string) (*domain.Subscriber, error) {
	if err := domain.ValidateEmail(email); err != nil {
		s.metrics.RecordSubscription(ctx, "invalid")
		return nil, err
	}

	subscriber := &domain.Subscriber{
		Email:    strings.ToLower(strings.TrimSpace(email)),
		IsActive: true,
		Source:   domain.SubscriberSourceWebsite,
	}

	if err := s.repo.Create(ctx, subscriber); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			s.metrics.RecordSubscription(ctx, "duplicate")
			return nil, err
		}
		s.metrics.RecordSubscription(ctx, "error")
		s.log.Error().Err(err).Msg("failed to store newsletter subscription")
		return nil, err
	}

	s.metrics.RecordSubscription(ctx, "created")
	s.log.Info().Str("subscriber_id", subscriber.ID).Msg("newsletter subscription created")
	return subscriber, nil
}
