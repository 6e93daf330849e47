package duffel

import (
	"encoding/json"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone database for airport-local segment times

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers"
)

// normalizeOrder converts a Duffel order into the canonical model.
// It never fails: unparseable amounts become zero and unparseable
// timestamps become the zero time.
func normalizeOrder(w *wireOrder, raw json.RawMessage, syncedAt time.Time) *providers.Order {
	order := &providers.Order{
		ID:               w.ID,
		Provider:         ProviderName,
		BookingReference: w.BookingReference,
		TotalAmount:      w.TotalAmount.money(w.TotalCurrency),
		Conditions:       normalizeConditions(w.Conditions, w.TotalCurrency),
		CreatedAt:        parseTime(w.CreatedAt),
		SyncedAt:         syncedAt.UTC(),
		Raw:              raw,
	}

	order.Documents = normalizeDocuments(w.Documents)
	order.Passengers = normalizePassengers(w.Passengers, w.Documents)
	order.Itineraries = normalizeSlices(w.Slices)
	order.Services = normalizeBookedServices(w.Services)
	if len(w.AvailableServices) > 0 {
		order.AvailableServices = normalizeAvailableServices(w.AvailableServices)
	}

	order.Status = deriveStatus(w)
	order.PaymentStatus, order.BalanceDue = derivePayment(w)

	return order
}

// deriveStatus applies, in priority order: cancellation marker, issued
// e-ticket, booking reference.
func deriveStatus(w *wireOrder) providers.OrderStatus {
	if w.CancelledAt != nil && *w.CancelledAt != "" {
		return providers.OrderStatusCancelled
	}
	for _, d := range w.Documents {
		if d.Type == string(providers.DocumentTypeETicket) && d.UniqueIdentifier != "" {
			return providers.OrderStatusTicketed
		}
	}
	if w.BookingReference != "" {
		return providers.OrderStatusConfirmed
	}
	return providers.OrderStatusPending
}

// derivePayment treats an explicit awaiting-payment flag as authoritative and
// otherwise falls back to the outstanding balance.
func derivePayment(w *wireOrder) (providers.PaymentStatus, providers.Money) {
	balance := w.BalanceDue.money(w.TotalCurrency)

	if w.PaymentStatus != nil && w.PaymentStatus.AwaitingPayment != nil {
		if *w.PaymentStatus.AwaitingPayment {
			if balance.IsZero() {
				balance = w.TotalAmount.money(w.TotalCurrency)
			}
			return providers.PaymentStatusAwaitingPayment, balance
		}
		return providers.PaymentStatusPaid, providers.NewMoney(decimal.Zero, w.TotalCurrency)
	}

	if !balance.IsZero() {
		return providers.PaymentStatusAwaitingPayment, balance
	}
	return providers.PaymentStatusPaid, balance
}

// normalizePassengerType maps the provider's passenger type vocabulary onto
// adult, child and infant. Anything unrecognised is treated as an adult.
func normalizePassengerType(t string) providers.PassengerType {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "child", "child_with_seat", "child_without_seat":
		return providers.PassengerTypeChild
	case "infant", "infant_without_seat", "infant_with_seat":
		return providers.PassengerTypeInfant
	default:
		return providers.PassengerTypeAdult
	}
}

// normalizeServiceType maps a free-form service type by keyword
func normalizeServiceType(t string) providers.ServiceType {
	lower := strings.ToLower(t)
	switch {
	case strings.Contains(lower, "bag"):
		return providers.ServiceTypeBaggage
	case strings.Contains(lower, "seat"):
		return providers.ServiceTypeSeat
	case strings.Contains(lower, "meal"):
		return providers.ServiceTypeMeal
	case strings.Contains(lower, "lounge"):
		return providers.ServiceTypeLounge
	default:
		return providers.ServiceTypeOther
	}
}

func normalizePassengers(ws []wirePassenger, docs []wireDocument) []providers.Passenger {
	passengers := make([]providers.Passenger, 0, len(ws))
	for _, wp := range ws {
		p := providers.Passenger{
			ID:         wp.ID,
			Title:      wp.Title,
			GivenName:  wp.GivenName,
			FamilyName: wp.FamilyName,
			Type:       normalizePassengerType(wp.Type),
			BornOn:     wp.BornOn,
			Email:      wp.Email,
			Phone:      wp.PhoneNumber,
		}

		for _, d := range docs {
			if d.Type != string(providers.DocumentTypeETicket) || !slices.Contains(d.PassengerIDs, wp.ID) {
				continue
			}
			p.TicketNumber = d.UniqueIdentifier
			p.TicketIssuedAt = parseTimePtr(d.IssuedAt)
			break
		}

		passengers = append(passengers, p)
	}
	return passengers
}

func normalizeDocuments(ws []wireDocument) []providers.Document {
	docs := make([]providers.Document, 0, len(ws))
	for _, wd := range ws {
		docType := providers.DocumentTypeItinerary
		if wd.Type == string(providers.DocumentTypeETicket) {
			docType = providers.DocumentTypeETicket
		}

		// A document may cover several passengers; emit one per passenger so
		// each ticket is attributable.
		ids := wd.PassengerIDs
		if len(ids) == 0 {
			ids = []string{""}
		}
		for _, pid := range ids {
			docs = append(docs, providers.Document{
				Type:             docType,
				PassengerID:      pid,
				UniqueIdentifier: wd.UniqueIdentifier,
				IssuedAt:         parseTimePtr(wd.IssuedAt),
			})
		}
	}
	return docs
}

func normalizeSlices(ws []wireSlice) []providers.Itinerary {
	itineraries := make([]providers.Itinerary, 0, len(ws))
	for _, slice := range ws {
		it := providers.Itinerary{
			ID:       slice.ID,
			Segments: make([]providers.Segment, 0, len(slice.Segments)),
		}
		for _, s := range slice.Segments {
			it.Segments = append(it.Segments, normalizeSegment(s))
		}
		itineraries = append(itineraries, it)
	}
	return itineraries
}

func normalizeSegment(s wireSegment) providers.Segment {
	seg := providers.Segment{
		ID:                    s.ID,
		Origin:                s.Origin.IATACode,
		Destination:           s.Destination.IATACode,
		OriginTerminal:        s.OriginTerminal,
		DestinationTerminal:   s.DestinationTerminal,
		DepartingAt:           parseLocalTime(s.DepartingAt, s.Origin.TimeZone),
		ArrivingAt:            parseLocalTime(s.ArrivingAt, s.Destination.TimeZone),
		MarketingCarrier:      s.MarketingCarrier.IATACode,
		MarketingCarrierName:  s.MarketingCarrier.Name,
		MarketingFlightNumber: s.MarketingCarrierFlightNumber,
	}
	if s.OperatingCarrier != nil {
		seg.OperatingCarrier = s.OperatingCarrier.IATACode
		seg.OperatingCarrierName = s.OperatingCarrier.Name
	}
	if s.Aircraft != nil {
		seg.Aircraft = s.Aircraft.Name
		if seg.Aircraft == "" {
			seg.Aircraft = s.Aircraft.IATACode
		}
	}
	if len(s.Passengers) > 0 {
		seg.CabinClass = s.Passengers[0].CabinClass
		seg.FareBrand = s.Passengers[0].FareBrandName
	}

	seg.Duration = parseISODuration(s.Duration)
	if seg.Duration == 0 && !seg.DepartingAt.IsZero() && !seg.ArrivingAt.IsZero() && seg.ArrivingAt.After(seg.DepartingAt) {
		seg.Duration = seg.ArrivingAt.Sub(seg.DepartingAt)
	}
	return seg
}

func normalizeConditions(wc wireConditions, fallbackCurrency string) providers.Conditions {
	return providers.Conditions{
		RefundBeforeDeparture: normalizeCondition(wc.RefundBeforeDeparture, fallbackCurrency),
		ChangeBeforeDeparture: normalizeCondition(wc.ChangeBeforeDeparture, fallbackCurrency),
	}
}

func normalizeCondition(wc *wireCondition, fallbackCurrency string) *providers.Condition {
	if wc == nil {
		return nil
	}
	currency := fallbackCurrency
	if wc.PenaltyCurrency != nil && *wc.PenaltyCurrency != "" {
		currency = *wc.PenaltyCurrency
	}
	return &providers.Condition{
		Allowed: wc.Allowed,
		Penalty: wc.PenaltyAmount.money(currency),
	}
}

func normalizeBookedServices(ws []wireService) []providers.BookedService {
	services := make([]providers.BookedService, 0, len(ws))
	for _, s := range ws {
		quantity := s.Quantity
		if quantity == 0 {
			quantity = 1
		}
		services = append(services, providers.BookedService{
			ID:           s.ID,
			Type:         normalizeServiceType(s.Type),
			Quantity:     quantity,
			PassengerIDs: s.PassengerIDs,
			SegmentIDs:   s.SegmentIDs,
			Amount:       s.TotalAmount.money(s.TotalCurrency),
			Metadata:     s.Metadata,
		})
	}
	return services
}

func normalizeAvailableServices(ws []wireService) []providers.AvailableService {
	services := make([]providers.AvailableService, 0, len(ws))
	for _, s := range ws {
		services = append(services, providers.AvailableService{
			ID:           s.ID,
			Type:         normalizeServiceType(s.Type),
			MaxQuantity:  s.MaximumQuantity,
			PassengerIDs: s.PassengerIDs,
			SegmentIDs:   s.SegmentIDs,
			Amount:       s.TotalAmount.money(s.TotalCurrency),
			Metadata:     s.Metadata,
		})
	}
	return services
}

func normalizeCancellation(wc *wireCancellation) *providers.CancellationQuote {
	return &providers.CancellationQuote{
		ID:           wc.ID,
		OrderID:      wc.OrderID,
		RefundAmount: wc.RefundAmount.money(wc.RefundCurrency),
		RefundTo:     wc.RefundTo,
		ExpiresAt:    parseTimePtr(wc.ExpiresAt),
		CanCancel:    wc.ConfirmedAt == nil || *wc.ConfirmedAt == "",
	}
}

// parseTime parses an RFC 3339 timestamp into UTC, returning the zero time
// for empty or malformed input.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// parseLocalTime parses a segment time. Duffel sends these without an offset,
// local to the airport's IANA zone. A value carrying an offset is used as is;
// a naive value with an unknown zone yields the zero time.
func parseLocalTime(s, zone string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	if zone == "" {
		return time.Time{}
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, loc)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseISODuration parses the ISO 8601 durations Duffel uses, such as
// "PT7H5M" or "P1DT2H". Malformed input yields zero.
func parseISODuration(s string) time.Duration {
	s = strings.ToUpper(strings.TrimSpace(s))
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0
	}
	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0
		}
		d += time.Duration(n) * unit
	}
	return d
}

func parseTimePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t := parseTime(*s)
	if t.IsZero() {
		return nil
	}
	return &t
}
