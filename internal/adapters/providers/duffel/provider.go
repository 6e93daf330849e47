package duffel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers"
)

// ProviderName is the registry code of the Duffel adapter
const ProviderName = "duffel"

// Provider implements providers.Provider and providers.ServiceProvider on top
// of the Duffel NDC API.
type Provider struct {
	client *Client
	logger *slog.Logger
	now    func() time.Time
}

var (
	_ providers.Provider        = (*Provider)(nil)
	_ providers.ServiceProvider = (*Provider)(nil)
	_ providers.HealthChecker   = (*Provider)(nil)
)

// NewProvider creates a new Duffel provider
func NewProvider(client *Client, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		client: client,
		logger: logger.With(slog.String("provider", ProviderName)),
		now:    time.Now,
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return ProviderName
}

// DisplayName returns the human-readable provider name
func (p *Provider) DisplayName() string {
	return "Duffel"
}

// GetOrder fetches an order and normalizes it. Cancelled orders are returned
// like any other.
func (p *Provider) GetOrder(ctx context.Context, externalID string) (*providers.Order, error) {
	w, raw, err := p.client.GetOrder(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", externalID, err)
	}

	order := normalizeOrder(w, raw, p.now())
	p.logger.Debug("fetched order",
		slog.String("order_id", order.ID),
		slog.String("status", string(order.Status)),
		slog.Int("passengers", len(order.Passengers)),
	)
	return order, nil
}

// GetCancellationQuote asks Duffel for a pending cancellation. The penalty is
// the difference between what was paid and what would be refunded.
func (p *Provider) GetCancellationQuote(ctx context.Context, externalID string) (*providers.CancellationQuote, error) {
	wc, err := p.client.CreateCancellation(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("cancellation quote for %s: %w", externalID, err)
	}

	quote := normalizeCancellation(wc)
	quote.PenaltyAmount = providers.NewMoney(decimal.Zero, quote.RefundAmount.Currency)

	w, _, err := p.client.GetOrder(ctx, externalID)
	if err != nil {
		p.logger.Warn("could not load order for penalty calculation",
			slog.String("order_id", externalID),
			slog.String("error", err.Error()),
		)
		return quote, nil
	}

	total := w.TotalAmount.money(w.TotalCurrency)
	if total.Currency == quote.RefundAmount.Currency {
		penalty := total.Amount.Sub(quote.RefundAmount.Amount)
		if penalty.IsPositive() {
			quote.PenaltyAmount = providers.NewMoney(penalty, total.Currency)
		}
	}
	return quote, nil
}

// CancelOrder creates and confirms a cancellation. Upstream refusals such as
// an already cancelled order are reported in the result.
func (p *Provider) CancelOrder(ctx context.Context, externalID string) (*providers.CancellationResult, error) {
	wc, err := p.client.CreateCancellation(ctx, externalID)
	if err != nil {
		if result, ok := businessFailure(err); ok {
			return result, nil
		}
		return nil, fmt.Errorf("cancel order %s: %w", externalID, err)
	}

	if wc.ConfirmedAt != nil && *wc.ConfirmedAt != "" {
		return &providers.CancellationResult{
			Success:      false,
			Error:        "order cancellation already confirmed",
			RefundAmount: wc.RefundAmount.money(wc.RefundCurrency),
			ConfirmedAt:  parseTimePtr(wc.ConfirmedAt),
		}, nil
	}

	confirmed, err := p.client.ConfirmCancellation(ctx, wc.ID)
	if err != nil {
		if result, ok := businessFailure(err); ok {
			return result, nil
		}
		return nil, fmt.Errorf("confirm cancellation %s: %w", wc.ID, err)
	}

	p.logger.Info("order cancelled",
		slog.String("order_id", externalID),
		slog.String("cancellation_id", confirmed.ID),
		slog.String("refund", string(confirmed.RefundAmount)+" "+confirmed.RefundCurrency),
	)

	return &providers.CancellationResult{
		Success:      true,
		RefundAmount: confirmed.RefundAmount.money(confirmed.RefundCurrency),
		ConfirmedAt:  parseTimePtr(confirmed.ConfirmedAt),
	}, nil
}

// GetAvailableServices lists ancillaries that can still be added
func (p *Provider) GetAvailableServices(ctx context.Context, externalID string) ([]providers.AvailableService, error) {
	ws, err := p.client.ListAvailableServices(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("available services for %s: %w", externalID, err)
	}
	return normalizeAvailableServices(ws), nil
}

// AddServices books ancillaries. Upstream refusals are reported in the result.
func (p *Provider) AddServices(ctx context.Context, externalID string, services []providers.ServiceRequest) (*providers.ServiceResult, error) {
	if len(services) == 0 {
		return &providers.ServiceResult{Success: false, Error: "no services requested"}, nil
	}

	requests := make([]wireServiceRequest, 0, len(services))
	for _, s := range services {
		requests = append(requests, wireServiceRequest{ID: s.ID, Quantity: s.Quantity})
	}

	w, err := p.client.AddServices(ctx, externalID, requests)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsBusinessError() {
			return &providers.ServiceResult{Success: false, Error: apiErr.Error()}, nil
		}
		return nil, fmt.Errorf("add services to %s: %w", externalID, err)
	}

	return &providers.ServiceResult{
		Success:  true,
		Services: normalizeBookedServices(w.Services),
	}, nil
}

// HealthCheck verifies the API is reachable with the configured token
func (p *Provider) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func businessFailure(err error) (*providers.CancellationResult, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsBusinessError() {
		return nil, false
	}
	return &providers.CancellationResult{Success: false, Error: apiErr.Error()}, true
}
