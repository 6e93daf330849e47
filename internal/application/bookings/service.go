// Package bookings exposes provider actions on local bookings: cancellation
// quotes, cancellation and ancillary services. Successful actions are
// followed by a forced sync so the local snapshot reflects them.
package bookings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers"
	appsync "github.com/eshaffer321/booking-sync-backend/internal/application/sync"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

// ErrServicesNotSupported is returned when the booking's provider does not sell ancillaries
var ErrServicesNotSupported = errors.New("provider does not support ancillary services")

// Syncer re-syncs a booking after a provider action
type Syncer interface {
	SyncBooking(ctx context.Context, idOrRef string, opts appsync.Options) *appsync.Result
}

// CancelOutcome is the provider's cancellation result plus the follow-up sync
type CancelOutcome struct {
	Result *providers.CancellationResult `json:"result"`
	Sync   *appsync.Result               `json:"sync,omitempty"`
}

// ServicesOutcome is the provider's add-services result plus the follow-up sync
type ServicesOutcome struct {
	Result *providers.ServiceResult `json:"result"`
	Sync   *appsync.Result          `json:"sync,omitempty"`
}

// Service runs provider actions for local bookings
type Service struct {
	repo     storage.BookingRepository
	registry *providers.Registry
	syncer   Syncer
	cfg      appsync.Config
	logger   *slog.Logger
}

// NewService creates a bookings service. syncer may be nil to skip the follow-up sync.
func NewService(repo storage.BookingRepository, registry *providers.Registry, syncer Syncer, cfg appsync.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ProviderTimeout <= 0 || cfg.DefaultProvider == "" {
		d := appsync.DefaultConfig()
		if cfg.ProviderTimeout <= 0 {
			cfg.ProviderTimeout = d.ProviderTimeout
		}
		if cfg.DefaultProvider == "" {
			cfg.DefaultProvider = d.DefaultProvider
		}
	}
	return &Service{
		repo:     repo,
		registry: registry,
		syncer:   syncer,
		cfg:      cfg,
		logger:   logger,
	}
}

// CancellationQuote asks the provider what cancelling the booking would refund
func (s *Service) CancellationQuote(ctx context.Context, idOrRef string) (*providers.CancellationQuote, error) {
	booking, provider, err := s.resolve(ctx, idOrRef)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	quote, err := provider.GetCancellationQuote(callCtx, booking.ExternalOrderID)
	if err != nil {
		return nil, upstreamErr(err)
	}
	s.logger.Info("Cancellation quote",
		"booking_id", booking.ID,
		"provider", provider.Name(),
		"refund", quote.RefundAmount.String(),
		"can_cancel", quote.CanCancel,
	)
	return quote, nil
}

// Cancel cancels the booking upstream. Expected business failures come back
// as an unsuccessful CancellationResult, not an error.
func (s *Service) Cancel(ctx context.Context, idOrRef string) (*CancelOutcome, error) {
	booking, provider, err := s.resolve(ctx, idOrRef)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	result, err := provider.CancelOrder(callCtx, booking.ExternalOrderID)
	if err != nil {
		return nil, upstreamErr(err)
	}

	outcome := &CancelOutcome{Result: result}
	if !result.Success {
		s.logger.Warn("Cancellation rejected", "booking_id", booking.ID, "provider", provider.Name(), "reason", result.Error)
		return outcome, nil
	}

	s.logger.Info("Booking cancelled", "booking_id", booking.ID, "provider", provider.Name(), "refund", result.RefundAmount.String())
	outcome.Sync = s.resync(ctx, booking)
	return outcome, nil
}

// AvailableServices lists ancillaries that can still be added to the booking
func (s *Service) AvailableServices(ctx context.Context, idOrRef string) ([]providers.AvailableService, error) {
	booking, provider, err := s.resolve(ctx, idOrRef)
	if err != nil {
		return nil, err
	}
	sp, ok := provider.(providers.ServiceProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServicesNotSupported, provider.Name())
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	services, err := sp.GetAvailableServices(callCtx, booking.ExternalOrderID)
	if err != nil {
		return nil, upstreamErr(err)
	}
	if services == nil {
		services = []providers.AvailableService{}
	}
	return services, nil
}

// AddServices books ancillaries on the booking
func (s *Service) AddServices(ctx context.Context, idOrRef string, requests []providers.ServiceRequest) (*ServicesOutcome, error) {
	booking, provider, err := s.resolve(ctx, idOrRef)
	if err != nil {
		return nil, err
	}
	sp, ok := provider.(providers.ServiceProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServicesNotSupported, provider.Name())
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	result, err := sp.AddServices(callCtx, booking.ExternalOrderID, requests)
	if err != nil {
		return nil, upstreamErr(err)
	}

	outcome := &ServicesOutcome{Result: result}
	if !result.Success {
		s.logger.Warn("Adding services rejected", "booking_id", booking.ID, "provider", provider.Name(), "reason", result.Error)
		return outcome, nil
	}

	s.logger.Info("Services added", "booking_id", booking.ID, "provider", provider.Name(), "count", len(result.Services))
	outcome.Sync = s.resync(ctx, booking)
	return outcome, nil
}

// resolve loads the booking and its provider adapter
func (s *Service) resolve(ctx context.Context, idOrRef string) (*storage.LocalBooking, providers.Provider, error) {
	booking, err := s.repo.FindBooking(ctx, idOrRef)
	if err != nil {
		if errors.Is(err, storage.ErrBookingNotFound) {
			return nil, nil, fmt.Errorf("%w: booking %q", appsync.ErrNotFound, idOrRef)
		}
		return nil, nil, fmt.Errorf("%w: load booking %q: %v", appsync.ErrPersistence, idOrRef, err)
	}

	code := strings.ToLower(strings.TrimSpace(booking.ProviderCode))
	if code == "" {
		code = s.cfg.DefaultProvider
	}
	provider, ok := s.registry.Get(code)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no provider registered for code %q", appsync.ErrUnsupportedProvider, code)
	}
	if strings.TrimSpace(booking.ExternalOrderID) == "" {
		return nil, nil, fmt.Errorf("%w: booking %s", appsync.ErrMissingExternalID, booking.BookingReference)
	}
	return booking, provider, nil
}

func (s *Service) resync(ctx context.Context, booking *storage.LocalBooking) *appsync.Result {
	if s.syncer == nil {
		return nil
	}
	result := s.syncer.SyncBooking(ctx, booking.ID.String(), appsync.Options{Force: true})
	if !result.Success {
		s.logger.Warn("Follow-up sync failed", "booking_id", booking.ID, "error", result.Error)
	}
	return result
}

func upstreamErr(err error) error {
	if errors.Is(err, providers.ErrOrderNotFound) {
		return fmt.Errorf("%w: %v", appsync.ErrNotFound, err)
	}
	return fmt.Errorf("%w: %v", appsync.ErrUpstream, err)
}
