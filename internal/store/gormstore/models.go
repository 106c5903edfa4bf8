package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User represents the users table. The customer_ref column carries the
// payment processor's customer id.
type User struct {
	UserID      string    `gorm:"type:uuid;primaryKey"`
	Email       string    `gorm:"not null;uniqueIndex"`
	Name        string    `gorm:"not null"`
	CustomerRef string    `gorm:"index"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (User) TableName() string { return "users" }

func (user *User) BeforeCreate(tx *gorm.DB) error {
	if user.UserID == "" {
		user.UserID = uuid.NewString()
	}
	return nil
}

// Room mirrors the rooms table. dates_reserved holds the committed
// nights as a sorted JSON array of YYYY-MM-DD strings.
type Room struct {
	RoomID        string         `gorm:"type:uuid;primaryKey"`
	RoomNumber    int            `gorm:"not null;uniqueIndex"`
	TypeID        string         `gorm:"index"`
	Status        string         `gorm:"not null"`
	DatesReserved datatypes.JSON `gorm:"not null"`
	Version       int64          `gorm:"not null;default:0"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"not null"`
}

func (Room) TableName() string { return "rooms" }

func (room *Room) BeforeCreate(tx *gorm.DB) error {
	if room.RoomID == "" {
		room.RoomID = uuid.NewString()
	}
	return nil
}

// Reservation mirrors the reservations table.
type Reservation struct {
	ReservationID    string    `gorm:"type:uuid;primaryKey"`
	UserID           string    `gorm:"not null;index"`
	RoomID           string    `gorm:"not null;index"`
	GuestName        string    `gorm:""`
	RoomNumber       int       `gorm:""`
	CheckIn          time.Time `gorm:"not null"`
	CheckOut         time.Time `gorm:"not null"`
	NumGuests        int       `gorm:"not null"`
	TotalPrice       float64   `gorm:"not null"`
	Status           string    `gorm:"not null;index"`
	PaymentIntentRef string    `gorm:"index"`
	TransactionID    string    `gorm:""`
	Version          int64     `gorm:"not null;default:0"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (Reservation) TableName() string { return "reservations" }

func (reservation *Reservation) BeforeCreate(tx *gorm.DB) error {
	if reservation.ReservationID == "" {
		reservation.ReservationID = uuid.NewString()
	}
	return nil
}

// Transaction mirrors the transactions table, one row per
// payment-intent lifecycle.
type Transaction struct {
	TransactionID    string     `gorm:"type:uuid;primaryKey"`
	PaymentIntentRef string     `gorm:"not null;uniqueIndex:uniq_transactions_intent"`
	PaymentMethodRef string     `gorm:""`
	ReservationID    string     `gorm:"not null;index"`
	UserID           string     `gorm:"not null;index"`
	Status           string     `gorm:"not null"`
	AmountCents      int64      `gorm:"not null"`
	Currency         string     `gorm:"not null"`
	Last4            string     `gorm:""`
	AuthorizedAt     *time.Time `gorm:""`
	CapturedAt       *time.Time `gorm:""`
	CancelledAt      *time.Time `gorm:""`
	CreatedAt        time.Time  `gorm:"not null"`
	UpdatedAt        time.Time  `gorm:"not null"`
}

func (Transaction) TableName() string { return "transactions" }

func (transaction *Transaction) BeforeCreate(tx *gorm.DB) error {
	if transaction.TransactionID == "" {
		transaction.TransactionID = uuid.NewString()
	}
	return nil
}
