package booking

import (
	"context"
	"errors"
	"fmt"
)

// Service orchestrates reservations, rooms, and the payment ledger
// over the store and gateway contracts.
type Service struct {
	rooms        RoomStore
	reservations ReservationStore
	transactions TransactionStore
	gateway      PaymentGateway
	customers    CustomerDirectory
	sinks        []NotificationSink
	locker       Locker
	nowFn        func() int64
	currency     string
	logger       OperationLogger
}

// NewService wires a Service.
func NewService(rooms RoomStore, reservations ReservationStore, transactions TransactionStore, gateway PaymentGateway, customers CustomerDirectory, now func() int64, options ...ServiceOption) (*Service, error) {
	if rooms == nil {
		return nil, fmt.Errorf("%w: room store dependency is nil", ErrInvalidServiceConfig)
	}
	if reservations == nil {
		return nil, fmt.Errorf("%w: reservation store dependency is nil", ErrInvalidServiceConfig)
	}
	if transactions == nil {
		return nil, fmt.Errorf("%w: transaction store dependency is nil", ErrInvalidServiceConfig)
	}
	if gateway == nil {
		return nil, fmt.Errorf("%w: payment gateway dependency is nil", ErrInvalidServiceConfig)
	}
	if customers == nil {
		return nil, fmt.Errorf("%w: customer directory dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		rooms:        rooms,
		reservations: reservations,
		transactions: transactions,
		gateway:      gateway,
		customers:    customers,
		locker:       NewKeyedLocker(),
		nowFn:        now,
		currency:     defaultCurrency,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	if err := validateCurrency(service.currency); err != nil {
		return nil, err
	}
	return service, nil
}

// CreateInput carries the facts needed to open a reservation.
type CreateInput struct {
	UserID           string
	RoomID           string
	CheckIn          Date
	CheckOut         Date
	NumGuests        int
	TotalPrice       float64
	PaymentMethodRef string
}

// Create verifies availability, places a hold at the processor, and
// persists the reservation, its transaction mirror, and the room's
// committed dates. A gateway rejection aborts before anything is
// persisted; a persistence failure after a successful hold triggers a
// compensating cancel of the fresh intent.
func (service *Service) Create(ctx context.Context, input CreateInput) (Reservation, error) {
	reservation, operationError := service.create(ctx, input)
	amount, amountErr := PriceToCents(input.TotalPrice)
	if amountErr != nil {
		amount = 0
	}
	service.logOperation(ctx, OperationLog{
		Operation:     operationCreate,
		ReservationID: reservation.ID,
		RoomID:        input.RoomID,
		UserID:        input.UserID,
		Amount:        amount,
		Error:         operationError,
	})
	return reservation, operationError
}

func (service *Service) create(ctx context.Context, input CreateInput) (Reservation, error) {
	stay, err := NewDateRange(input.CheckIn, input.CheckOut)
	if err != nil {
		return Reservation{}, err
	}
	if input.NumGuests <= 0 {
		return Reservation{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidGuestCount)
	}
	amount, err := PriceToCents(input.TotalPrice)
	if err != nil {
		return Reservation{}, err
	}
	customer, err := service.customers.Customer(ctx, input.UserID)
	if err != nil {
		return Reservation{}, err
	}

	release, err := service.locker.Acquire(ctx, lockKeyRoomPrefix+input.RoomID)
	if err != nil {
		return Reservation{}, err
	}
	defer release()

	room, err := service.rooms.FindRoom(ctx, input.RoomID)
	if err != nil {
		return Reservation{}, err
	}
	if !room.HasAvailability(stay) {
		return Reservation{}, fmt.Errorf("%w: room %d has committed nights in %s", ErrRoomUnavailable, room.RoomNumber, stay)
	}

	authorization, err := service.gateway.Authorize(ctx, amount, service.currency, customer.CustomerRef, input.PaymentMethodRef)
	if err != nil {
		return Reservation{}, err
	}

	reservation := Reservation{
		UserID:           input.UserID,
		RoomID:           room.ID,
		GuestName:        customer.DisplayName,
		RoomNumber:       room.RoomNumber,
		CheckIn:          stay.CheckIn(),
		CheckOut:         stay.CheckOut(),
		NumGuests:        input.NumGuests,
		TotalPrice:       input.TotalPrice,
		Status:           ReservationStatusPending,
		PaymentIntentRef: authorization.IntentRef,
	}
	saved, err := service.reservations.SaveReservation(ctx, reservation)
	if err != nil {
		return Reservation{}, service.rollbackAuthorization(ctx, authorization.IntentRef, "", err)
	}

	transaction := service.newAuthorizedTransaction(authorization, saved.ID, input.UserID, amount)
	savedTransaction, err := service.transactions.SaveTransaction(ctx, transaction)
	if err != nil {
		return Reservation{}, service.rollbackAuthorization(ctx, authorization.IntentRef, "", err)
	}

	saved.TransactionID = savedTransaction.ID
	saved, err = service.reservations.SaveReservation(ctx, saved)
	if err != nil {
		return Reservation{}, service.rollbackAuthorization(ctx, authorization.IntentRef, savedTransaction.PaymentIntentRef, err)
	}

	room.ReserveDates(stay)
	if _, err := service.rooms.SaveRoom(ctx, room); err != nil {
		return Reservation{}, service.rollbackAuthorization(ctx, authorization.IntentRef, savedTransaction.PaymentIntentRef, err)
	}

	service.notify(ctx, Notification{
		Kind:          NotificationReservationCreated,
		ReservationID: saved.ID,
		UserID:        saved.UserID,
		Email:         customer.Email,
		GuestName:     customer.DisplayName,
		RoomNumber:    saved.RoomNumber,
		CheckIn:       saved.CheckIn,
		CheckOut:      saved.CheckOut,
		AmountCents:   amount,
		Currency:      service.currency,
	})
	return saved, nil
}

// CheckIn captures the held funds and confirms the reservation.
func (service *Service) CheckIn(ctx context.Context, reservationID string) (Reservation, error) {
	reservation, operationError := service.checkIn(ctx, reservationID)
	var amount AmountCents
	if operationError == nil {
		if captured, err := PriceToCents(reservation.TotalPrice); err == nil {
			amount = captured
		}
	}
	service.logOperation(ctx, OperationLog{
		Operation:     operationCheckIn,
		ReservationID: reservationID,
		RoomID:        reservation.RoomID,
		UserID:        reservation.UserID,
		Amount:        amount,
		Error:         operationError,
	})
	return reservation, operationError
}

func (service *Service) checkIn(ctx context.Context, reservationID string) (Reservation, error) {
	release, err := service.locker.Acquire(ctx, lockKeyReservationPrefix+reservationID)
	if err != nil {
		return Reservation{}, err
	}
	defer release()

	reservation, err := service.reservations.FindReservation(ctx, reservationID)
	if err != nil {
		return Reservation{}, err
	}
	if err := requireStatus(reservation, ReservationStatusPending, operationCheckIn); err != nil {
		return reservation, err
	}

	if _, err := service.gateway.Capture(ctx, reservation.PaymentIntentRef); err != nil {
		return reservation, err
	}
	if err := service.captureTransaction(ctx, reservation.PaymentIntentRef); err != nil {
		return reservation, err
	}

	reservation.Status = ReservationStatusConfirmed
	confirmed, err := service.reservations.SaveReservation(ctx, reservation)
	if err != nil {
		return reservation, err
	}

	service.notifyReservation(ctx, NotificationCheckedIn, confirmed)
	return confirmed, nil
}

// CheckOut completes a confirmed reservation. The funds were captured
// at check-in, so no gateway call is involved.
func (service *Service) CheckOut(ctx context.Context, reservationID string) (Reservation, error) {
	reservation, operationError := service.checkOut(ctx, reservationID)
	service.logOperation(ctx, OperationLog{
		Operation:     operationCheckOut,
		ReservationID: reservationID,
		RoomID:        reservation.RoomID,
		UserID:        reservation.UserID,
		Error:         operationError,
	})
	return reservation, operationError
}

func (service *Service) checkOut(ctx context.Context, reservationID string) (Reservation, error) {
	release, err := service.locker.Acquire(ctx, lockKeyReservationPrefix+reservationID)
	if err != nil {
		return Reservation{}, err
	}
	defer release()

	reservation, err := service.reservations.FindReservation(ctx, reservationID)
	if err != nil {
		return Reservation{}, err
	}
	if err := requireStatus(reservation, ReservationStatusConfirmed, operationCheckOut); err != nil {
		return reservation, err
	}

	reservation.Status = ReservationStatusCompleted
	return service.reservations.SaveReservation(ctx, reservation)
}

// Cancel releases the hold, closes the transaction mirror, frees the
// room's nights, and marks the reservation cancelled.
func (service *Service) Cancel(ctx context.Context, reservationID string) (Reservation, error) {
	reservation, operationError := service.cancel(ctx, reservationID)
	service.logOperation(ctx, OperationLog{
		Operation:     operationCancel,
		ReservationID: reservationID,
		RoomID:        reservation.RoomID,
		UserID:        reservation.UserID,
		Error:         operationError,
	})
	return reservation, operationError
}

func (service *Service) cancel(ctx context.Context, reservationID string) (Reservation, error) {
	release, err := service.locker.Acquire(ctx, lockKeyReservationPrefix+reservationID)
	if err != nil {
		return Reservation{}, err
	}
	defer release()

	reservation, err := service.reservations.FindReservation(ctx, reservationID)
	if err != nil {
		return Reservation{}, err
	}
	if err := requireStatus(reservation, ReservationStatusPending, operationCancel); err != nil {
		return reservation, err
	}
	stay, err := reservation.Stay()
	if err != nil {
		return reservation, err
	}

	if err := service.gateway.Cancel(ctx, reservation.PaymentIntentRef); err != nil {
		return reservation, err
	}
	if err := service.cancelTransaction(ctx, reservation.PaymentIntentRef); err != nil {
		return reservation, err
	}

	reservation.Status = ReservationStatusCancelled
	cancelled, err := service.reservations.SaveReservation(ctx, reservation)
	if err != nil {
		return reservation, err
	}

	releaseRoom, err := service.locker.Acquire(ctx, lockKeyRoomPrefix+cancelled.RoomID)
	if err != nil {
		return cancelled, err
	}
	defer releaseRoom()
	room, err := service.rooms.FindRoom(ctx, cancelled.RoomID)
	if err != nil {
		return cancelled, err
	}
	room.ReleaseDates(stay)
	if _, err := service.rooms.SaveRoom(ctx, room); err != nil {
		return cancelled, err
	}

	service.notifyReservation(ctx, NotificationCancelled, cancelled)
	return cancelled, nil
}

func requireStatus(reservation Reservation, required ReservationStatus, operation string) error {
	if reservation.Status != required {
		return fmt.Errorf("%w: cannot %s a %s reservation", ErrInvalidStateTransition, operation, reservation.Status)
	}
	return nil
}

// rollbackAuthorization cancels a hold whose local bookkeeping could
// not be completed, so no orphaned hold survives a persistence
// failure. The original cause is always returned; a failed cancel is
// joined onto it for reconciliation.
func (service *Service) rollbackAuthorization(ctx context.Context, intentRef string, mirroredIntentRef string, cause error) error {
	if cancelErr := service.gateway.Cancel(ctx, intentRef); cancelErr != nil {
		return errors.Join(cause, fmt.Errorf("orphaned hold %s left at gateway: %w", intentRef, cancelErr))
	}
	if mirroredIntentRef != "" {
		// The mirror row exists; stamp it cancelled so the ledger does
		// not report a hold the gateway no longer carries.
		if mirrorErr := service.cancelTransaction(ctx, mirroredIntentRef); mirrorErr != nil {
			return errors.Join(cause, mirrorErr)
		}
	}
	return cause
}

func (service *Service) notifyReservation(ctx context.Context, kind NotificationKind, reservation Reservation) {
	event := Notification{
		Kind:          kind,
		ReservationID: reservation.ID,
		UserID:        reservation.UserID,
		GuestName:     reservation.GuestName,
		RoomNumber:    reservation.RoomNumber,
		CheckIn:       reservation.CheckIn,
		CheckOut:      reservation.CheckOut,
		Currency:      service.currency,
	}
	if customer, err := service.customers.Customer(ctx, reservation.UserID); err == nil {
		event.Email = customer.Email
	}
	if amount, err := PriceToCents(reservation.TotalPrice); err == nil {
		event.AmountCents = amount
	}
	service.notify(ctx, event)
}

func (service *Service) notify(ctx context.Context, event Notification) {
	for _, sink := range service.sinks {
		if err := sink.Notify(ctx, event); err != nil {
			service.logOperation(ctx, OperationLog{
				Operation:     operationNotify,
				ReservationID: event.ReservationID,
				UserID:        event.UserID,
				Status:        operationStatusError,
				Error:         err,
			})
		}
	}
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func validateCurrency(currency string) error {
	if len(currency) != 3 {
		return fmt.Errorf("%w: %q is not a three-letter code", ErrInvalidCurrency, currency)
	}
	for _, r := range currency {
		if r < 'a' || r > 'z' {
			return fmt.Errorf("%w: %q must be lowercase ISO", ErrInvalidCurrency, currency)
		}
	}
	return nil
}
