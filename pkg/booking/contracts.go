package booking

import "context"

// RoomStore is the persistence contract for rooms.
type RoomStore interface {
	FindRoom(ctx context.Context, roomID string) (Room, error)
	SaveRoom(ctx context.Context, room Room) (Room, error)
}

// ReservationStore is the persistence contract for reservations.
type ReservationStore interface {
	FindReservation(ctx context.Context, reservationID string) (Reservation, error)
	SaveReservation(ctx context.Context, reservation Reservation) (Reservation, error)
	ListReservationsByUser(ctx context.Context, userID string) ([]Reservation, error)
}

// TransactionStore is the persistence contract for the local
// payment-intent mirror.
type TransactionStore interface {
	SaveTransaction(ctx context.Context, transaction Transaction) (Transaction, error)
	FindTransactionByIntent(ctx context.Context, intentRef string) (Transaction, error)
	FindTransactionByReservation(ctx context.Context, reservationID string) (Transaction, error)
	ListTransactionsByUser(ctx context.Context, userID string) ([]Transaction, error)
}

// Authorization is the result of placing a hold at the processor.
type Authorization struct {
	IntentRef        string
	PaymentMethodRef string
	Last4            string
}

// PaymentGateway drives the external processor through the held-funds
// lifecycle. Amounts are always integer minor units; currencies are
// lowercase ISO codes. Calls are blocking and honor the context
// deadline; a timeout is a failure, never an assumed success.
type PaymentGateway interface {
	Authorize(ctx context.Context, amount AmountCents, currency string, customerRef string, paymentMethodRef string) (Authorization, error)
	Capture(ctx context.Context, intentRef string) (AmountCents, error)
	Cancel(ctx context.Context, intentRef string) error
	Refund(ctx context.Context, intentRef string) error
}

// CustomerDirectory resolves an internal user to its processor-side
// customer record.
type CustomerDirectory interface {
	Customer(ctx context.Context, userID string) (Customer, error)
}

// NotificationKind labels guest-facing reservation events.
type NotificationKind string

const (
	NotificationReservationCreated NotificationKind = "reservation_created"
	NotificationCheckedIn          NotificationKind = "checked_in"
	NotificationCancelled          NotificationKind = "cancelled"
)

// Notification carries the facts a sink needs to address a guest.
type Notification struct {
	Kind          NotificationKind
	ReservationID string
	UserID        string
	Email         string
	GuestName     string
	RoomNumber    int
	CheckIn       Date
	CheckOut      Date
	AmountCents   AmountCents
	Currency      string
}

// NotificationSink delivers reservation events. Delivery is
// fire-and-forget: failures are logged by the caller, never surfaced
// as operation failures.
type NotificationSink interface {
	Notify(ctx context.Context, event Notification) error
}

// Locker serializes operations that share a key. Acquire blocks until
// the key is held or the context ends; the returned release is safe to
// call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
