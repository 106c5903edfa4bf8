package booking

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// AmountCents is an integer currency amount in minor units.
type AmountCents int64

// Int64 returns the raw minor-unit amount.
func (amount AmountCents) Int64() int64 {
	return int64(amount)
}

// NewAmountCents validates an amount and ensures it is strictly positive.
func NewAmountCents(raw int64) (AmountCents, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmountCents)
	}
	return AmountCents(raw), nil
}

// PriceToCents converts a major-unit price to minor units.
func PriceToCents(price float64) (AmountCents, error) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidPrice)
	}
	return AmountCents(math.Round(price * minorUnitsPerMajor)), nil
}

const dateLayout = "2006-01-02"

// Date is a calendar day in UTC.
type Date struct {
	value time.Time
}

// NewDate constructs a Date from calendar components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{value: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its UTC calendar day.
func DateOf(instant time.Time) Date {
	utc := instant.UTC()
	return NewDate(utc.Year(), utc.Month(), utc.Day())
}

// ParseDate parses the canonical YYYY-MM-DD form.
func ParseDate(raw string) (Date, error) {
	parsed, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return DateOf(parsed), nil
}

// String returns the canonical YYYY-MM-DD form.
func (date Date) String() string {
	return date.value.Format(dateLayout)
}

// Time returns the midnight-UTC instant of the day.
func (date Date) Time() time.Time {
	return date.value
}

// Before reports whether date precedes other.
func (date Date) Before(other Date) bool {
	return date.value.Before(other.value)
}

// Next returns the following calendar day.
func (date Date) Next() Date {
	return Date{value: date.value.AddDate(0, 0, 1)}
}

// IsZero reports whether the date is unset.
func (date Date) IsZero() bool {
	return date.value.IsZero()
}

// DateRange is a half-open stay interval [checkIn, checkOut).
type DateRange struct {
	checkIn  Date
	checkOut Date
}

// NewDateRange validates that check-in strictly precedes check-out.
func NewDateRange(checkIn Date, checkOut Date) (DateRange, error) {
	if checkIn.IsZero() || checkOut.IsZero() {
		return DateRange{}, fmt.Errorf("%w: missing boundary", ErrInvalidDateRange)
	}
	if !checkIn.Before(checkOut) {
		return DateRange{}, fmt.Errorf("%w: check-in %s must precede check-out %s", ErrInvalidDateRange, checkIn, checkOut)
	}
	return DateRange{checkIn: checkIn, checkOut: checkOut}, nil
}

// CheckIn returns the inclusive start day.
func (stay DateRange) CheckIn() Date {
	return stay.checkIn
}

// CheckOut returns the exclusive end day.
func (stay DateRange) CheckOut() Date {
	return stay.checkOut
}

// Dates enumerates the occupied nights; the check-out day is excluded
// so the room frees up on the departure date.
func (stay DateRange) Dates() []Date {
	dates := make([]Date, 0, stay.Nights())
	for day := stay.checkIn; day.Before(stay.checkOut); day = day.Next() {
		dates = append(dates, day)
	}
	return dates
}

// Nights returns the number of occupied nights.
func (stay DateRange) Nights() int {
	return int(stay.checkOut.value.Sub(stay.checkIn.value).Hours() / 24)
}

// Contains reports whether the day falls inside the stay.
func (stay DateRange) Contains(day Date) bool {
	return !day.Before(stay.checkIn) && day.Before(stay.checkOut)
}

// String renders the half-open interval.
func (stay DateRange) String() string {
	return fmt.Sprintf("[%s, %s)", stay.checkIn, stay.checkOut)
}

// DateSet tracks the days a room is committed to reservations.
type DateSet map[Date]struct{}

// NewDateSet builds a set from the given days.
func NewDateSet(days ...Date) DateSet {
	set := make(DateSet, len(days))
	for _, day := range days {
		set[day] = struct{}{}
	}
	return set
}

// Contains reports membership of a single day.
func (set DateSet) Contains(day Date) bool {
	_, ok := set[day]
	return ok
}

// Add inserts a day; inserting a present day is a no-op.
func (set DateSet) Add(day Date) {
	set[day] = struct{}{}
}

// Remove deletes a day; removing an absent day is a no-op.
func (set DateSet) Remove(day Date) {
	delete(set, day)
}

// Clone returns an independent copy.
func (set DateSet) Clone() DateSet {
	clone := make(DateSet, len(set))
	for day := range set {
		clone[day] = struct{}{}
	}
	return clone
}

// Sorted returns the days in ascending order.
func (set DateSet) Sorted() []Date {
	days := make([]Date, 0, len(set))
	for day := range set {
		days = append(days, day)
	}
	sort.Slice(days, func(first, second int) bool {
		return days[first].Before(days[second])
	})
	return days
}

// ReservationStatus defines the reservation lifecycle.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "PENDING"
	ReservationStatusConfirmed ReservationStatus = "CONFIRMED"
	ReservationStatusCompleted ReservationStatus = "COMPLETED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
)

// ParseReservationStatus validates a stored status value.
func ParseReservationStatus(raw string) (ReservationStatus, error) {
	status := ReservationStatus(raw)
	switch status {
	case ReservationStatusPending, ReservationStatusConfirmed, ReservationStatusCompleted, ReservationStatusCancelled:
		return status, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidReservationStatus, raw)
}

// String returns the stored form.
func (status ReservationStatus) String() string {
	return string(status)
}

// TransactionStatus mirrors the processor-side intent state.
type TransactionStatus string

const (
	TransactionStatusAuthorized TransactionStatus = "AUTHORIZED"
	TransactionStatusCaptured   TransactionStatus = "CAPTURED"
	TransactionStatusCancelled  TransactionStatus = "CANCELLED"
)

// ParseTransactionStatus validates a stored status value.
func ParseTransactionStatus(raw string) (TransactionStatus, error) {
	status := TransactionStatus(raw)
	switch status {
	case TransactionStatusAuthorized, TransactionStatusCaptured, TransactionStatusCancelled:
		return status, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTransactionStatus, raw)
}

// String returns the stored form.
func (status TransactionStatus) String() string {
	return string(status)
}

// Reservation is a stay commitment for one room and one guest.
type Reservation struct {
	ID               string
	UserID           string
	RoomID           string
	GuestName        string
	RoomNumber       int
	CheckIn          Date
	CheckOut         Date
	NumGuests        int
	TotalPrice       float64
	Status           ReservationStatus
	PaymentIntentRef string
	TransactionID    string
	Version          int64
}

// Stay returns the reserved half-open range.
func (reservation Reservation) Stay() (DateRange, error) {
	return NewDateRange(reservation.CheckIn, reservation.CheckOut)
}

// Room is the availability source of truth for one physical room.
type Room struct {
	ID            string
	RoomNumber    int
	TypeID        string
	Status        string
	DatesReserved DateSet
	Version       int64
}

// Transaction is one payment-intent lifecycle record, mirrored locally
// for reporting and reconciliation.
type Transaction struct {
	ID                  string
	PaymentIntentRef    string
	PaymentMethodRef    string
	ReservationID       string
	UserID              string
	Status              TransactionStatus
	AmountCents         AmountCents
	Currency            string
	Last4               string
	AuthorizedAtUnixUTC int64
	CapturedAtUnixUTC   int64
	CancelledAtUnixUTC  int64
}

// Customer is the processor-side identity for an internal user.
type Customer struct {
	UserID      string
	CustomerRef string
	DisplayName string
	Email       string
}
