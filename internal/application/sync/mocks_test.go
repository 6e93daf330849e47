package sync

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers"
)

// MockProvider is a mock implementation of providers.Provider
type MockProvider struct {
	mock.Mock
	name string
}

func (m *MockProvider) Name() string { return m.name }
func (m *MockProvider) DisplayName() string { return "Mock " + m.name }

func (m *MockProvider) GetOrder(ctx context.Context, externalID string) (*providers.Order, error) {
	args := m.Called(ctx, externalID)
	order, _ := args.Get(0).(*providers.Order)
	return order, args.Error(1)
}

func (m *MockProvider) CancelOrder(ctx context.Context, externalID string) (*providers.CancellationResult, error) {
	args := m.Called(ctx, externalID)
	res, _ := args.Get(0).(*providers.CancellationResult)
	return res, args.Error(1)
}

func (m *MockProvider) GetCancellationQuote(ctx context.Context, externalID string) (*providers.CancellationQuote, error) {
	args := m.Called(ctx, externalID)
	quote, _ := args.Get(0).(*providers.CancellationQuote)
	return quote, args.Error(1)
}

// MockServiceProvider adds the ancillary operations
type MockServiceProvider struct {
	MockProvider
}

func (m *MockServiceProvider) GetAvailableServices(ctx context.Context, externalID string) ([]providers.AvailableService, error) {
	args := m.Called(ctx, externalID)
	services, _ := args.Get(0).([]providers.AvailableService)
	return services, args.Error(1)
}

func (m *MockServiceProvider) AddServices(ctx context.Context, externalID string, services []providers.ServiceRequest) (*providers.ServiceResult, error) {
	args := m.Called(ctx, externalID, services)
	res, _ := args.Get(0).(*providers.ServiceResult)
	return res, args.Error(1)
}

// fakePublisher records published events
type fakePublisher struct {
	events []ChangeEvent
	err    error
}

func (f *fakePublisher) PublishChanges(ctx context.Context, event ChangeEvent) error {
	f.events = append(f.events, event)
	return f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// ticketedOrder builds a paid, ticketed order with one e-ticket and one service
func ticketedOrder(externalID string) *providers.Order {
	issued := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	return &providers.Order{
		ID:               externalID,
		Provider:         "duffel",
		BookingReference: "RZPNX8",
		Status:           providers.OrderStatusTicketed,
		Passengers: []providers.Passenger{
			{ID: "pas_1", GivenName: "Amelia", FamilyName: "Earhart", Type: providers.PassengerTypeAdult, TicketNumber: "1252345678901"},
		},
		Documents: []providers.Document{
			{Type: providers.DocumentTypeETicket, PassengerID: "pas_1", UniqueIdentifier: "1252345678901", IssuedAt: &issued},
		},
		TotalAmount:   providers.ParseMoney("412.50", "GBP"),
		PaymentStatus: providers.PaymentStatusPaid,
		BalanceDue:    providers.ParseMoney("0", "GBP"),
		Conditions: providers.Conditions{
			RefundBeforeDeparture: &providers.Condition{Allowed: true, Penalty: providers.ParseMoney("40.00", "GBP")},
		},
		Services: []providers.BookedService{
			{ID: "ser_1", Type: providers.ServiceTypeBaggage, Quantity: 1, Amount: providers.ParseMoney("35.00", "GBP")},
		},
		Raw: json.RawMessage(`{"id":"` + externalID + `"}`),
	}
}
