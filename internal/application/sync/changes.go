package sync

import (
	"strconv"

	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

// Change field names
const (
	FieldStatus        = "status"
	FieldETickets      = "e_tickets"
	FieldPaymentStatus = "payment_status"
	FieldServices      = "services"
)

// DetectChanges compares the stored snapshot of a booking with a freshly
// fetched order. It only reads its arguments.
func DetectChanges(booking *storage.LocalBooking, order *providers.Order) []Change {
	changes := []Change{}
	if booking == nil || order == nil {
		return changes
	}

	if oldStatus, newStatus := booking.ProviderStatus, string(order.Status); oldStatus != newStatus {
		sig := SignificanceWarning
		if order.Status == providers.OrderStatusCancelled {
			sig = SignificanceCritical
		}
		changes = append(changes, Change{
			Field:        FieldStatus,
			OldValue:     oldStatus,
			NewValue:     newStatus,
			Significance: sig,
		})
	}

	if newTickets := order.ETickets(); len(booking.ETickets) == 0 && len(newTickets) > 0 {
		changes = append(changes, Change{
			Field:        FieldETickets,
			OldValue:     "none",
			NewValue:     "issued",
			Significance: SignificanceInfo,
		})
	}

	// A payment status that was never recorded is not a transition
	if oldPay, newPay := booking.ProviderPaymentStatus, string(order.PaymentStatus); oldPay != "" && oldPay != newPay {
		sig := SignificanceInfo
		if oldPay == string(providers.PaymentStatusPaid) {
			sig = SignificanceWarning
		}
		changes = append(changes, Change{
			Field:        FieldPaymentStatus,
			OldValue:     oldPay,
			NewValue:     newPay,
			Significance: sig,
		})
	}

	if oldCount, newCount := len(booking.Services), len(order.Services); oldCount != newCount {
		changes = append(changes, Change{
			Field:        FieldServices,
			OldValue:     strconv.Itoa(oldCount),
			NewValue:     strconv.Itoa(newCount),
			Significance: SignificanceInfo,
		})
	}

	return changes
}
