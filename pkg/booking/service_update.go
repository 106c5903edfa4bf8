package booking

import (
	"context"
	"errors"
	"fmt"
)

// UpdateInput carries the replacement stay for a pending reservation.
type UpdateInput struct {
	CheckIn    Date
	CheckOut   Date
	NumGuests  int
	TotalPrice float64
}

// Update moves a pending reservation onto a new stay and amount. The
// replacement intent is authorized before the old hold is cancelled,
// so a processor failure at any point leaves the reservation with
// exactly one live hold and local state untouched.
func (service *Service) Update(ctx context.Context, reservationID string, input UpdateInput) (Reservation, error) {
	reservation, operationError := service.update(ctx, reservationID, input)
	service.logOperation(ctx, OperationLog{
		Operation:     operationUpdate,
		ReservationID: reservationID,
		RoomID:        reservation.RoomID,
		UserID:        reservation.UserID,
		Error:         operationError,
	})
	return reservation, operationError
}

func (service *Service) update(ctx context.Context, reservationID string, input UpdateInput) (Reservation, error) {
	newStay, err := NewDateRange(input.CheckIn, input.CheckOut)
	if err != nil {
		return Reservation{}, err
	}
	if input.NumGuests <= 0 {
		return Reservation{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidGuestCount)
	}
	newAmount, err := PriceToCents(input.TotalPrice)
	if err != nil {
		return Reservation{}, err
	}

	release, err := service.locker.Acquire(ctx, lockKeyReservationPrefix+reservationID)
	if err != nil {
		return Reservation{}, err
	}
	defer release()

	reservation, err := service.reservations.FindReservation(ctx, reservationID)
	if err != nil {
		return Reservation{}, err
	}
	if err := requireStatus(reservation, ReservationStatusPending, operationUpdate); err != nil {
		return reservation, err
	}
	currentStay, err := reservation.Stay()
	if err != nil {
		return reservation, err
	}
	transaction, err := service.transactions.FindTransactionByIntent(ctx, reservation.PaymentIntentRef)
	if err != nil {
		return reservation, err
	}
	customer, err := service.customers.Customer(ctx, reservation.UserID)
	if err != nil {
		return reservation, err
	}

	releaseRoom, err := service.locker.Acquire(ctx, lockKeyRoomPrefix+reservation.RoomID)
	if err != nil {
		return reservation, err
	}
	defer releaseRoom()

	room, err := service.rooms.FindRoom(ctx, reservation.RoomID)
	if err != nil {
		return reservation, err
	}
	if !room.HasAvailabilityExcluding(newStay, currentStay) {
		return reservation, fmt.Errorf("%w: room %d has committed nights in %s", ErrRoomUnavailable, room.RoomNumber, newStay)
	}

	oldIntentRef := reservation.PaymentIntentRef
	authorization, err := service.gateway.Authorize(ctx, newAmount, service.currency, customer.CustomerRef, transaction.PaymentMethodRef)
	if err != nil {
		return reservation, err
	}
	if err := service.gateway.Cancel(ctx, oldIntentRef); err != nil {
		// The old hold is still live; discard the replacement so the
		// guest is not double-held.
		if rollbackErr := service.gateway.Cancel(ctx, authorization.IntentRef); rollbackErr != nil {
			return reservation, errors.Join(err, fmt.Errorf("orphaned hold %s left at gateway: %w", authorization.IntentRef, rollbackErr))
		}
		return reservation, err
	}

	updatedTransaction, err := service.reauthorizeTransaction(ctx, transaction, authorization, newAmount)
	if err != nil {
		return reservation, service.rollbackAuthorization(ctx, authorization.IntentRef, "", err)
	}

	room.ReleaseDates(currentStay)
	room.ReserveDates(newStay)
	if _, err := service.rooms.SaveRoom(ctx, room); err != nil {
		return reservation, service.rollbackAuthorization(ctx, authorization.IntentRef, updatedTransaction.PaymentIntentRef, err)
	}

	reservation.CheckIn = newStay.CheckIn()
	reservation.CheckOut = newStay.CheckOut()
	reservation.NumGuests = input.NumGuests
	reservation.TotalPrice = input.TotalPrice
	reservation.PaymentIntentRef = authorization.IntentRef
	reservation.TransactionID = updatedTransaction.ID
	updated, err := service.reservations.SaveReservation(ctx, reservation)
	if err != nil {
		return reservation, service.rollbackAuthorization(ctx, authorization.IntentRef, updatedTransaction.PaymentIntentRef, err)
	}
	return updated, nil
}

// Refund reverses a captured payment. It is an operational escape
// hatch: the reservation state machine is not touched.
func (service *Service) Refund(ctx context.Context, reservationID string) error {
	operationError := service.refund(ctx, reservationID)
	service.logOperation(ctx, OperationLog{
		Operation:     operationRefund,
		ReservationID: reservationID,
		Error:         operationError,
	})
	return operationError
}

func (service *Service) refund(ctx context.Context, reservationID string) error {
	transaction, err := service.transactions.FindTransactionByReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if transaction.Status != TransactionStatusCaptured {
		return fmt.Errorf("%w: cannot refund a %s transaction", ErrInvalidStateTransition, transaction.Status)
	}
	return service.gateway.Refund(ctx, transaction.PaymentIntentRef)
}
