package models

import "time"

type RoomType string

const (
	RoomSingle RoomType = "single"
	RoomDouble RoomType = "double"
)

// Valid reports whether t is a known room type.
func (t RoomType) Valid() bool {
	return t == RoomSingle || t == RoomDouble
}

// Label is the customer facing room description.
func (t RoomType) Label() string {
	if t == RoomSingle {
		return "Habitación Sencilla"
	}
	return "Habitación Doble"
}

// BookingDraft is the booking proposal produced by the conversational backend.
type BookingDraft struct {
	ConfirmationCode string     `json:"confirmationCode,omitempty"`
	Hotel            DraftHotel `json:"hotel"`
	Dates            DraftDates `json:"dates"`
	Room             DraftRoom  `json:"room"`
}

type DraftHotel struct {
	Name string `json:"name"`
}

type DraftDates struct {
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
}

type DraftRoom struct {
	Type       RoomType `json:"type"`
	TotalPrice float64  `json:"totalPrice"`
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is a known persisted status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// Booking is the persisted booking record. Dates are "YYYY-MM-DD".
type Booking struct {
	ID               string        `bson:"id" json:"id"`
	ConfirmationCode string        `bson:"confirmation_code" json:"confirmation_code"`
	HotelName        string        `bson:"hotel_name" json:"hotel_name"`
	CheckIn          string        `bson:"check_in" json:"check_in"`
	CheckOut         string        `bson:"check_out" json:"check_out"`
	RoomType         RoomType      `bson:"room_type" json:"room_type"`
	TotalPrice       float64       `bson:"total_price" json:"total_price"`
	Status           BookingStatus `bson:"status" json:"status"`
	UserID           string        `bson:"user_id" json:"user_id"`
	CreatedAt        time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `bson:"updated_at" json:"updated_at"`
}

// BookingFilter narrows report listings. Search matches hotel name or
// confirmation code as a case-insensitive substring.
type BookingFilter struct {
	Search string
	Status BookingStatus
}

// BookingSummary is the minimal booking context joined into invoices and payments.
type BookingSummary struct {
	ConfirmationCode string `bson:"confirmation_code" json:"confirmation_code"`
	HotelName        string `bson:"hotel_name" json:"hotel_name"`
	CheckIn          string `bson:"check_in" json:"check_in"`
	CheckOut         string `bson:"check_out" json:"check_out"`
}

// BookingState is the lifecycle state of the active booking of a client session.
type BookingState string

const (
	StateNoBooking       BookingState = "no_booking"
	StateDrafted         BookingState = "drafted"
	StateAwaitingPayment BookingState = "awaiting_payment"
	StateCompleted       BookingState = "completed"
	StateDeleted         BookingState = "deleted"
)

// ActiveBooking is the orchestrator's view of a client session.
// BookingID is set once the draft has been persisted for payment.
type ActiveBooking struct {
	SessionID string          `json:"sessionId"`
	State     BookingState    `json:"state"`
	Draft     *BookingDraft   `json:"draft,omitempty"`
	BookingID string          `json:"bookingId,omitempty"`
	Payment   *PaymentSession `json:"payment,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
