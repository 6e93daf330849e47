package providers

import (
	"context"
	"encoding/json"
	"time"
)

// OrderStatus is the canonical lifecycle state of a provider order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusTicketed  OrderStatus = "ticketed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus is the canonical payment state of a provider order
type PaymentStatus string

const (
	PaymentStatusAwaitingPayment PaymentStatus = "awaiting_payment"
	PaymentStatusPaid            PaymentStatus = "paid"
)

// PassengerType is the canonical passenger classification
type PassengerType string

const (
	PassengerTypeAdult  PassengerType = "adult"
	PassengerTypeChild  PassengerType = "child"
	PassengerTypeInfant PassengerType = "infant"
)

// DocumentType classifies issued travel documents
type DocumentType string

const (
	DocumentTypeETicket   DocumentType = "electronic_ticket"
	DocumentTypeItinerary DocumentType = "itinerary"
)

// ServiceType classifies ancillary services
type ServiceType string

const (
	ServiceTypeBaggage ServiceType = "baggage"
	ServiceTypeSeat    ServiceType = "seat"
	ServiceTypeMeal    ServiceType = "meal"
	ServiceTypeLounge  ServiceType = "lounge"
	ServiceTypeOther   ServiceType = "other"
)

// Order is the provider-independent view of a booking held upstream.
// It is built fresh on every fetch and never persisted as-is.
type Order struct {
	ID                string             `json:"id"`
	Provider          string             `json:"provider"`
	BookingReference  string             `json:"booking_reference,omitempty"`
	Status            OrderStatus        `json:"status"`
	Passengers        []Passenger        `json:"passengers"`
	Documents         []Document         `json:"documents"`
	Itineraries       []Itinerary        `json:"itineraries"`
	TotalAmount       Money              `json:"total_amount"`
	PaymentStatus     PaymentStatus      `json:"payment_status"`
	BalanceDue        Money              `json:"balance_due"`
	Conditions        Conditions         `json:"conditions"`
	Services          []BookedService    `json:"services"`
	AvailableServices []AvailableService `json:"available_services,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	SyncedAt          time.Time          `json:"synced_at"`
	Raw               json.RawMessage    `json:"raw,omitempty"`
}

// Currency returns the ISO currency of the order total
func (o *Order) Currency() string {
	return o.TotalAmount.Currency
}

// ETickets returns the electronic ticket documents of the order
func (o *Order) ETickets() []Document {
	var tickets []Document
	for _, d := range o.Documents {
		if d.Type == DocumentTypeETicket {
			tickets = append(tickets, d)
		}
	}
	return tickets
}

// Passenger is a traveller on the order
type Passenger struct {
	ID             string        `json:"id"`
	Title          string        `json:"title,omitempty"`
	GivenName      string        `json:"given_name"`
	FamilyName     string        `json:"family_name"`
	Type           PassengerType `json:"type"`
	BornOn         string        `json:"born_on,omitempty"`
	Email          string        `json:"email,omitempty"`
	Phone          string        `json:"phone,omitempty"`
	TicketNumber   string        `json:"ticket_number,omitempty"`
	TicketIssuedAt *time.Time    `json:"ticket_issued_at,omitempty"`
}

// Document is an issued travel document such as an e-ticket
type Document struct {
	Type             DocumentType `json:"type"`
	PassengerID      string       `json:"passenger_id,omitempty"`
	UniqueIdentifier string       `json:"unique_identifier"`
	IssuedAt         *time.Time   `json:"issued_at,omitempty"`
}

// Itinerary is one journey direction made of ordered segments
type Itinerary struct {
	ID       string    `json:"id"`
	Segments []Segment `json:"segments"`
}

// Segment is a single flight leg
type Segment struct {
	ID                    string        `json:"id"`
	Origin                string        `json:"origin"`
	Destination           string        `json:"destination"`
	OriginTerminal        string        `json:"origin_terminal,omitempty"`
	DestinationTerminal   string        `json:"destination_terminal,omitempty"`
	DepartingAt           time.Time     `json:"departing_at"`
	ArrivingAt            time.Time     `json:"arriving_at"`
	Duration              time.Duration `json:"duration"`
	MarketingCarrier      string        `json:"marketing_carrier"`
	MarketingCarrierName  string        `json:"marketing_carrier_name,omitempty"`
	MarketingFlightNumber string        `json:"marketing_flight_number"`
	OperatingCarrier      string        `json:"operating_carrier,omitempty"`
	OperatingCarrierName  string        `json:"operating_carrier_name,omitempty"`
	Aircraft              string        `json:"aircraft,omitempty"`
	CabinClass            string        `json:"cabin_class,omitempty"`
	FareBrand             string        `json:"fare_brand,omitempty"`
}

// Conditions describes what the fare allows before departure
type Conditions struct {
	RefundBeforeDeparture *Condition `json:"refund_before_departure,omitempty"`
	ChangeBeforeDeparture *Condition `json:"change_before_departure,omitempty"`
}

// Condition is a single fare rule with its penalty
type Condition struct {
	Allowed bool  `json:"allowed"`
	Penalty Money `json:"penalty"`
}

// BookedService is an ancillary already attached to the order
type BookedService struct {
	ID           string          `json:"id"`
	Type         ServiceType     `json:"type"`
	Quantity     int             `json:"quantity"`
	PassengerIDs []string        `json:"passenger_ids,omitempty"`
	SegmentIDs   []string        `json:"segment_ids,omitempty"`
	Amount       Money           `json:"amount"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

// AvailableService is an ancillary that can still be added to the order
type AvailableService struct {
	ID           string          `json:"id"`
	Type         ServiceType     `json:"type"`
	MaxQuantity  int             `json:"max_quantity"`
	PassengerIDs []string        `json:"passenger_ids,omitempty"`
	SegmentIDs   []string        `json:"segment_ids,omitempty"`
	Amount       Money           `json:"amount"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

// ServiceRequest asks the provider to add a quantity of an available service
type ServiceRequest struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// ServiceResult reports the outcome of an add-services call.
// Services holds the order's booked services after a successful add.
type ServiceResult struct {
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
	Services []BookedService `json:"services,omitempty"`
}

// CancellationQuote is what the provider would refund if the order were cancelled now
type CancellationQuote struct {
	ID            string     `json:"id"`
	OrderID       string     `json:"order_id"`
	RefundAmount  Money      `json:"refund_amount"`
	PenaltyAmount Money      `json:"penalty_amount"`
	RefundTo      string     `json:"refund_to,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CanCancel     bool       `json:"can_cancel"`
}

// CancellationResult reports a cancel attempt. Business refusals are
// reported with Success=false rather than as Go errors.
type CancellationResult struct {
	Success      bool       `json:"success"`
	Error        string     `json:"error,omitempty"`
	RefundAmount Money      `json:"refund_amount"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
}

// Provider is the interface that all booking providers must implement
type Provider interface {
	// Provider identification
	Name() string        // lowercase registry code, e.g. "duffel"
	DisplayName() string // "Duffel"

	// Order operations
	GetOrder(ctx context.Context, externalID string) (*Order, error)
	CancelOrder(ctx context.Context, externalID string) (*CancellationResult, error)
	GetCancellationQuote(ctx context.Context, externalID string) (*CancellationQuote, error)
}

// ServiceProvider is implemented by providers that sell ancillaries after booking
type ServiceProvider interface {
	GetAvailableServices(ctx context.Context, externalID string) ([]AvailableService, error)
	AddServices(ctx context.Context, externalID string, services []ServiceRequest) (*ServiceResult, error)
}

// HealthChecker is implemented by providers that can probe their upstream
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
