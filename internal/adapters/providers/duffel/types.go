package duffel

import (
	"bytes"
	"encoding/json"

	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers"
)

// Wire types mirror the subset of the Duffel order schema the adapter reads.
// Amounts arrive as decimal strings and timestamps as RFC 3339 strings,
// except segment times, which are local to the airport.

// wireAmount is a monetary amount. Duffel sends decimal strings; numbers are
// accepted as well and anything else decodes to "" so it parses as zero.
type wireAmount string

func (a *wireAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = wireAmount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*a = wireAmount(n.String())
		return nil
	}
	*a = ""
	return nil
}

func (a wireAmount) money(currency string) providers.Money {
	return providers.ParseMoney(string(a), currency)
}

type wireOrder struct {
	ID                string             `json:"id"`
	BookingReference  string             `json:"booking_reference"`
	CancelledAt       *string            `json:"cancelled_at"`
	CreatedAt         string             `json:"created_at"`
	TotalAmount       wireAmount         `json:"total_amount"`
	TotalCurrency     string             `json:"total_currency"`
	BalanceDue        wireAmount         `json:"balance_due,omitempty"`
	PaymentStatus     *wirePaymentStatus `json:"payment_status"`
	Passengers        []wirePassenger    `json:"passengers"`
	Documents         []wireDocument     `json:"documents"`
	Slices            []wireSlice        `json:"slices"`
	Conditions        wireConditions     `json:"conditions"`
	Services          []wireService      `json:"services"`
	AvailableServices []wireService      `json:"available_services"`
}

type wirePaymentStatus struct {
	AwaitingPayment   *bool   `json:"awaiting_payment"`
	PaymentRequiredBy *string `json:"payment_required_by"`
	PaidAt            *string `json:"paid_at"`
}

type wirePassenger struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	GivenName   string `json:"given_name"`
	FamilyName  string `json:"family_name"`
	BornOn      string `json:"born_on"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

type wireDocument struct {
	Type             string   `json:"type"`
	UniqueIdentifier string   `json:"unique_identifier"`
	PassengerIDs     []string `json:"passenger_ids"`
	IssuedAt         *string  `json:"issued_at"`
}

type wireSlice struct {
	ID       string        `json:"id"`
	Segments []wireSegment `json:"segments"`
}

type wirePlace struct {
	IATACode string `json:"iata_code"`
	TimeZone string `json:"time_zone"`
}

type wireCarrier struct {
	IATACode string `json:"iata_code"`
	Name     string `json:"name"`
}

type wireAircraft struct {
	IATACode string `json:"iata_code"`
	Name     string `json:"name"`
}

type wireSegmentPassenger struct {
	PassengerID   string `json:"passenger_id"`
	CabinClass    string `json:"cabin_class"`
	FareBrandName string `json:"fare_brand_name"`
}

type wireSegment struct {
	ID                           string                 `json:"id"`
	Origin                       wirePlace              `json:"origin"`
	Destination                  wirePlace              `json:"destination"`
	OriginTerminal               string                 `json:"origin_terminal"`
	DestinationTerminal          string                 `json:"destination_terminal"`
	DepartingAt                  string                 `json:"departing_at"`
	ArrivingAt                   string                 `json:"arriving_at"`
	Duration                     string                 `json:"duration"`
	MarketingCarrier             wireCarrier            `json:"marketing_carrier"`
	MarketingCarrierFlightNumber string                 `json:"marketing_carrier_flight_number"`
	OperatingCarrier             *wireCarrier           `json:"operating_carrier"`
	Aircraft                     *wireAircraft          `json:"aircraft"`
	Passengers                   []wireSegmentPassenger `json:"passengers"`
}

type wireConditions struct {
	RefundBeforeDeparture *wireCondition `json:"refund_before_departure"`
	ChangeBeforeDeparture *wireCondition `json:"change_before_departure"`
}

type wireCondition struct {
	Allowed         bool       `json:"allowed"`
	PenaltyAmount   wireAmount `json:"penalty_amount"`
	PenaltyCurrency *string    `json:"penalty_currency"`
}

// wireService covers both booked and available services; booked services
// carry Quantity, available ones MaximumQuantity.
type wireService struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Quantity        int             `json:"quantity"`
	MaximumQuantity int             `json:"maximum_quantity"`
	PassengerIDs    []string        `json:"passenger_ids"`
	SegmentIDs      []string        `json:"segment_ids"`
	TotalAmount     wireAmount      `json:"total_amount"`
	TotalCurrency   string          `json:"total_currency"`
	Metadata        json.RawMessage `json:"metadata"`
}

type wireServiceRequest struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

type wireCancellation struct {
	ID             string     `json:"id"`
	OrderID        string     `json:"order_id"`
	RefundAmount   wireAmount `json:"refund_amount"`
	RefundCurrency string     `json:"refund_currency"`
	RefundTo       string     `json:"refund_to"`
	ExpiresAt      *string    `json:"expires_at"`
	ConfirmedAt    *string    `json:"confirmed_at"`
	CreatedAt      string     `json:"created_at"`
}
