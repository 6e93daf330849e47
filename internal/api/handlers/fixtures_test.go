package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers"
	"github.com/eshaffer321/booking-sync-backend/internal/application/bookings"
	appsync "github.com/eshaffer321/booking-sync-backend/internal/application/sync"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

// stubProvider answers every call with canned values.
type stubProvider struct {
	order        *providers.Order
	orderErr     error
	quote        *providers.CancellationQuote
	cancelResult *providers.CancellationResult
	available    []providers.AvailableService
	addResult    *providers.ServiceResult
	added        []providers.ServiceRequest
}

func (p *stubProvider) Name() string        { return "duffel" }
func (p *stubProvider) DisplayName() string { return "Duffel" }

func (p *stubProvider) GetOrder(ctx context.Context, externalID string) (*providers.Order, error) {
	if p.orderErr != nil {
		return nil, p.orderErr
	}
	o := *p.order
	o.ID = externalID
	return &o, nil
}

func (p *stubProvider) CancelOrder(ctx context.Context, externalID string) (*providers.CancellationResult, error) {
	if p.cancelResult != nil && p.cancelResult.Success {
		p.order.Status = providers.OrderStatusCancelled
	}
	return p.cancelResult, nil
}

func (p *stubProvider) GetCancellationQuote(ctx context.Context, externalID string) (*providers.CancellationQuote, error) {
	return p.quote, nil
}

func (p *stubProvider) GetAvailableServices(ctx context.Context, externalID string) ([]providers.AvailableService, error) {
	return p.available, nil
}

func (p *stubProvider) AddServices(ctx context.Context, externalID string, services []providers.ServiceRequest) (*providers.ServiceResult, error) {
	p.added = services
	return p.addResult, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ticketedOrder() *providers.Order {
	return &providers.Order{
		Provider:      "duffel",
		Status:        providers.OrderStatusTicketed,
		PaymentStatus: providers.PaymentStatusPaid,
		TotalAmount:   providers.ParseMoney("412.50", "GBP"),
		BalanceDue:    providers.ParseMoney("0", "GBP"),
		Documents: []providers.Document{
			{Type: providers.DocumentTypeETicket, PassengerID: "pas_1", UniqueIdentifier: "1252345678901"},
		},
		Raw: json.RawMessage(`{"id":"ord_1"}`),
	}
}

type fixture struct {
	repo     *storage.MockRepository
	provider *stubProvider
	orch     *appsync.Orchestrator
	actions  *bookings.Service
	booking  *storage.LocalBooking
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := storage.NewMockRepository()
	provider := &stubProvider{order: ticketedOrder()}
	registry := providers.NewRegistry(quietLogger(), provider)
	orch := appsync.NewOrchestrator(repo, registry, nil, appsync.Config{}, quietLogger())

	booking := &storage.LocalBooking{
		ID:               uuid.New(),
		BookingReference: "BK-2001",
		ProviderCode:     "duffel",
		ExternalOrderID:  "ord_1",
		SyncStatus:       storage.SyncStatusPending,
	}
	require.NoError(t, repo.CreateBooking(context.Background(), booking))

	return &fixture{
		repo:     repo,
		provider: provider,
		orch:     orch,
		actions:  bookings.NewService(repo, registry, orch, orch.Config(), quietLogger()),
		booking:  booking,
	}
}
