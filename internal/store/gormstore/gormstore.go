package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/harborview/booking/pkg/booking"
)

const (
	constraintTransactionIntent = "uniq_transactions_intent"
	pgUniqueViolationCode       = "23505"
	sqliteConstraintCode        = 19
	errorOperationStore         = "store"
	errorSubjectRoom            = "room"
	errorSubjectReservation     = "reservation"
	errorSubjectTransaction     = "transaction"
	errorSubjectUser            = "user"
	errorCodeGet                = "get"
	errorCodeList               = "list"
	errorCodeSave               = "save"
	errorCodeDuplicate          = "duplicate"
	errorCodeInvalid            = "invalid"
	errorCodeStale              = "stale"
)

// Store implements the booking persistence contracts using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Room{}, &Reservation{}, &Transaction{})
}

// FindRoom loads one room by id.
func (store *Store) FindRoom(ctx context.Context, roomID string) (booking.Room, error) {
	var model Room
	err := store.db.WithContext(ctx).Where("room_id = ?", roomID).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.Room{}, wrapStoreError(errorSubjectRoom, errorCodeGet, booking.ErrRoomNotFound)
		}
		return booking.Room{}, wrapStoreError(errorSubjectRoom, errorCodeGet, err)
	}
	return mapRoom(model)
}

// SaveRoom persists a room. Existing rows are updated with an
// optimistic version check; a stale version fails with
// booking.ErrVersionConflict instead of overwriting.
func (store *Store) SaveRoom(ctx context.Context, room booking.Room) (booking.Room, error) {
	reserved, err := datesToJSON(room.DatesReserved)
	if err != nil {
		return booking.Room{}, wrapStoreError(errorSubjectRoom, errorCodeInvalid, err)
	}
	if room.ID == "" {
		model := Room{
			RoomNumber:    room.RoomNumber,
			TypeID:        room.TypeID,
			Status:        room.Status,
			DatesReserved: reserved,
			Version:       1,
		}
		if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
			return booking.Room{}, wrapStoreError(errorSubjectRoom, errorCodeSave, err)
		}
		return mapRoom(model)
	}
	result := store.db.WithContext(ctx).
		Model(&Room{}).
		Where("room_id = ? AND version = ?", room.ID, room.Version).
		Updates(map[string]interface{}{
			"room_number":    room.RoomNumber,
			"type_id":        room.TypeID,
			"status":         room.Status,
			"dates_reserved": reserved,
			"version":        room.Version + 1,
		})
	if result.Error != nil {
		return booking.Room{}, wrapStoreError(errorSubjectRoom, errorCodeSave, result.Error)
	}
	if result.RowsAffected == 0 {
		return booking.Room{}, wrapStoreError(errorSubjectRoom, errorCodeStale, booking.ErrVersionConflict)
	}
	room.Version++
	return room, nil
}

// FindReservation loads one reservation by id.
func (store *Store) FindReservation(ctx context.Context, reservationID string) (booking.Reservation, error) {
	var model Reservation
	err := store.db.WithContext(ctx).Where("reservation_id = ?", reservationID).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeGet, booking.ErrReservationNotFound)
		}
		return booking.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeGet, err)
	}
	return mapReservation(model)
}

// SaveReservation persists a reservation with the same optimistic
// version handling as SaveRoom.
func (store *Store) SaveReservation(ctx context.Context, reservation booking.Reservation) (booking.Reservation, error) {
	if reservation.ID == "" {
		model := Reservation{
			UserID:           reservation.UserID,
			RoomID:           reservation.RoomID,
			GuestName:        reservation.GuestName,
			RoomNumber:       reservation.RoomNumber,
			CheckIn:          reservation.CheckIn.Time(),
			CheckOut:         reservation.CheckOut.Time(),
			NumGuests:        reservation.NumGuests,
			TotalPrice:       reservation.TotalPrice,
			Status:           reservation.Status.String(),
			PaymentIntentRef: reservation.PaymentIntentRef,
			TransactionID:    reservation.TransactionID,
			Version:          1,
		}
		if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
			return booking.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeSave, err)
		}
		return mapReservation(model)
	}
	result := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("reservation_id = ? AND version = ?", reservation.ID, reservation.Version).
		Updates(map[string]interface{}{
			"guest_name":         reservation.GuestName,
			"room_number":        reservation.RoomNumber,
			"check_in":           reservation.CheckIn.Time(),
			"check_out":          reservation.CheckOut.Time(),
			"num_guests":         reservation.NumGuests,
			"total_price":        reservation.TotalPrice,
			"status":             reservation.Status.String(),
			"payment_intent_ref": reservation.PaymentIntentRef,
			"transaction_id":     reservation.TransactionID,
			"version":            reservation.Version + 1,
		})
	if result.Error != nil {
		return booking.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeSave, result.Error)
	}
	if result.RowsAffected == 0 {
		return booking.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeStale, booking.ErrVersionConflict)
	}
	reservation.Version++
	return reservation, nil
}

// ListReservationsByUser returns a guest's reservations, newest first.
func (store *Store) ListReservationsByUser(ctx context.Context, userID string) ([]booking.Reservation, error) {
	var rows []Reservation
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectReservation, errorCodeList, err)
	}
	reservations := make([]booking.Reservation, 0, len(rows))
	for _, row := range rows {
		reservation, err := mapReservation(row)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	return reservations, nil
}

// SaveTransaction persists a transaction mirror row.
func (store *Store) SaveTransaction(ctx context.Context, transaction booking.Transaction) (booking.Transaction, error) {
	model := Transaction{
		TransactionID:    transaction.ID,
		PaymentIntentRef: transaction.PaymentIntentRef,
		PaymentMethodRef: transaction.PaymentMethodRef,
		ReservationID:    transaction.ReservationID,
		UserID:           transaction.UserID,
		Status:           transaction.Status.String(),
		AmountCents:      transaction.AmountCents.Int64(),
		Currency:         transaction.Currency,
		Last4:            transaction.Last4,
		AuthorizedAt:     unixToTime(transaction.AuthorizedAtUnixUTC),
		CapturedAt:       unixToTime(transaction.CapturedAtUnixUTC),
		CancelledAt:      unixToTime(transaction.CancelledAtUnixUTC),
	}
	if transaction.ID == "" {
		err := store.db.WithContext(ctx).Create(&model).Error
		if isUniqueViolation(err, constraintTransactionIntent) {
			return booking.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, err)
		}
		if err != nil {
			return booking.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeSave, err)
		}
		return mapTransaction(model)
	}
	err := store.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("transaction_id = ?", transaction.ID).
		Updates(map[string]interface{}{
			"payment_intent_ref": model.PaymentIntentRef,
			"payment_method_ref": model.PaymentMethodRef,
			"status":             model.Status,
			"amount_cents":       model.AmountCents,
			"currency":           model.Currency,
			"last4":              model.Last4,
			"authorized_at":      model.AuthorizedAt,
			"captured_at":        model.CapturedAt,
			"cancelled_at":       model.CancelledAt,
		}).Error
	if err != nil {
		return booking.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeSave, err)
	}
	return transaction, nil
}

// FindTransactionByIntent returns the mirror row for a payment intent.
func (store *Store) FindTransactionByIntent(ctx context.Context, intentRef string) (booking.Transaction, error) {
	var model Transaction
	err := store.db.WithContext(ctx).Where("payment_intent_ref = ?", intentRef).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, booking.ErrTransactionNotFound)
		}
		return booking.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, err)
	}
	return mapTransaction(model)
}

// FindTransactionByReservation returns the mirror row for a reservation.
func (store *Store) FindTransactionByReservation(ctx context.Context, reservationID string) (booking.Transaction, error) {
	var model Transaction
	err := store.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Order("created_at DESC").
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, booking.ErrTransactionNotFound)
		}
		return booking.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, err)
	}
	return mapTransaction(model)
}

// ListTransactionsByUser returns a guest's transactions, newest first.
func (store *Store) ListTransactionsByUser(ctx context.Context, userID string) ([]booking.Transaction, error) {
	var rows []Transaction
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	transactions := make([]booking.Transaction, 0, len(rows))
	for _, row := range rows {
		transaction, err := mapTransaction(row)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}

// Customer resolves a user to its processor-side customer record.
func (store *Store) Customer(ctx context.Context, userID string) (booking.Customer, error) {
	var model User
	err := store.db.WithContext(ctx).Where("user_id = ?", userID).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.Customer{}, wrapStoreError(errorSubjectUser, errorCodeGet, booking.ErrUserNotFound)
		}
		return booking.Customer{}, wrapStoreError(errorSubjectUser, errorCodeGet, err)
	}
	return booking.Customer{
		UserID:      model.UserID,
		CustomerRef: model.CustomerRef,
		DisplayName: model.Name,
		Email:       model.Email,
	}, nil
}

// SaveUser inserts or updates a user row; the surrounding user layer
// owns profile CRUD, this exists for provisioning and seeding.
func (store *Store) SaveUser(ctx context.Context, user User) (User, error) {
	if err := store.db.WithContext(ctx).Save(&user).Error; err != nil {
		return User{}, wrapStoreError(errorSubjectUser, errorCodeSave, err)
	}
	return user, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return booking.WrapError(errorOperationStore, subject, code, err)
}

func mapRoom(model Room) (booking.Room, error) {
	reserved, err := datesFromJSON(model.DatesReserved)
	if err != nil {
		return booking.Room{}, wrapStoreError(errorSubjectRoom, errorCodeInvalid, err)
	}
	return booking.Room{
		ID:            model.RoomID,
		RoomNumber:    model.RoomNumber,
		TypeID:        model.TypeID,
		Status:        model.Status,
		DatesReserved: reserved,
		Version:       model.Version,
	}, nil
}

func mapReservation(model Reservation) (booking.Reservation, error) {
	status, err := booking.ParseReservationStatus(model.Status)
	if err != nil {
		return booking.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
	}
	return booking.Reservation{
		ID:               model.ReservationID,
		UserID:           model.UserID,
		RoomID:           model.RoomID,
		GuestName:        model.GuestName,
		RoomNumber:       model.RoomNumber,
		CheckIn:          booking.DateOf(model.CheckIn),
		CheckOut:         booking.DateOf(model.CheckOut),
		NumGuests:        model.NumGuests,
		TotalPrice:       model.TotalPrice,
		Status:           status,
		PaymentIntentRef: model.PaymentIntentRef,
		TransactionID:    model.TransactionID,
		Version:          model.Version,
	}, nil
}

func mapTransaction(model Transaction) (booking.Transaction, error) {
	status, err := booking.ParseTransactionStatus(model.Status)
	if err != nil {
		return booking.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	amount, err := booking.NewAmountCents(model.AmountCents)
	if err != nil {
		return booking.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	return booking.Transaction{
		ID:                  model.TransactionID,
		PaymentIntentRef:    model.PaymentIntentRef,
		PaymentMethodRef:    model.PaymentMethodRef,
		ReservationID:       model.ReservationID,
		UserID:              model.UserID,
		Status:              status,
		AmountCents:         amount,
		Currency:            model.Currency,
		Last4:               model.Last4,
		AuthorizedAtUnixUTC: timeOrZero(model.AuthorizedAt),
		CapturedAtUnixUTC:   timeOrZero(model.CapturedAt),
		CancelledAtUnixUTC:  timeOrZero(model.CancelledAt),
	}, nil
}

func datesToJSON(set booking.DateSet) (datatypes.JSON, error) {
	days := set.Sorted()
	values := make([]string, 0, len(days))
	for _, day := range days {
		values = append(values, day.String())
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func datesFromJSON(raw datatypes.JSON) (booking.DateSet, error) {
	if len(raw) == 0 {
		return booking.NewDateSet(), nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	set := booking.NewDateSet()
	for _, value := range values {
		day, err := booking.ParseDate(value)
		if err != nil {
			return nil, err
		}
		set.Add(day)
	}
	return set, nil
}

func unixToTime(unixUTC int64) *time.Time {
	if unixUTC == 0 {
		return nil
	}
	value := time.Unix(unixUTC, 0).UTC()
	return &value
}

func timeOrZero(value *time.Time) int64 {
	if value == nil {
		return 0
	}
	return value.Unix()
}

func isUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraint
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
