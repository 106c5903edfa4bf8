package booking

import (
	"context"
	"errors"
	"testing"
)

func TestCheckInCapturesAndConfirms(test *testing.T) {
	test.Parallel()
	env := newStubEnv(test)
	service := mustNewService(test, env)
	created := mustCreatePending(test, service, "room-101", "2025-06-01", "2025-06-03")

	confirmed, err := service.CheckIn(context.Background(), created.ID)
	if err != nil {
		test.Fatalf("check-in: %v", err)
	}
	if confirmed.Status != ReservationStatusConfirmed {
		test.Fatalf("expected CONFIRMED, got %s", confirmed.Status)
	}
	if len(env.gateway.captured) != 1 || env.gateway.captured[0] != created.PaymentIntentRef {
		test.Fatalf("expected the held intent captured")
	}
	transaction := env.mustTransactionByIntent(test, created.PaymentIntentRef)
	if transaction.Status != TransactionStatusCaptured {
		test.Fatalf("expected CAPTURED, got %s", transaction.Status)
	}
	if transaction.CapturedAtUnixUTC == 0 {
		test.Fatalf("expected capturedAt to be stamped")
	}
}

func TestCheckInRequiresPending(test *testing.T) {
	test.Parallel()
	env := newStubEnv(test)
	service := mustNewService(test, env)
	created := mustCreatePending(test, service, "room-101", "2025-06-01", "2025-06-03")
	if _, err := service.CheckIn(context.Background(), created.ID); err != nil {
		test.Fatalf("first check-in: %v", err)
	}

	_, err := service.CheckIn(context.Background(), created.ID)
	if !errors.Is(err, ErrInvalidStateTransition) {
		test.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	if len(env.gateway.captured) != 1 {
		test.Fatalf("expected no second capture, got %d", len(env.gateway.captured))
	}
}

func TestCheckInGatewayFailureLeavesLocalStateUnchanged(test *testing.T) {
	test.Parallel()
	env := newStubEnv(test)
	service := mustNewService(test, env)
	created := mustCreatePending(test, service, "room-101", "2025-06-01", "2025-06-03")
	env.gateway.captureError = errProcessorFailure

	_, err := service.CheckIn(context.Background(), created.ID)
	if !errors.Is(err, errProcessorFailure) {
		test.Fatalf("expected processor failure, got %v", err)
	}
	reservation := env.mustReservation(test, created.ID)
	if reservation.Status != ReservationStatusPending {
		test.Fatalf("expected reservation still PENDING, got %s", reservation.Status)
	}
	transaction := env.mustTransactionByIntent(test, created.PaymentIntentRef)
	if transaction.Status != TransactionStatusAuthorized {
		test.Fatalf("expected transaction still AUTHORIZED, got %s", transaction.Status)
	}
}

func TestCheckOutCompletesConfirmedReservation(test *testing.T) {
	test.Parallel()
	env := newStubEnv(test)
	service := mustNewService(test, env)
	created := mustCreatePending(test, service, "room-101", "2025-06-01", "2025-06-03")
	if _, err := service.CheckIn(context.Background(), created.ID); err != nil {
		test.Fatalf("check-in: %v", err)
	}

	completed, err := service.CheckOut(context.Background(), created.ID)
	if err != nil {
		test.Fatalf("check-out: %v", err)
	}
	if completed.Status != ReservationStatusCompleted {
		test.Fatalf("expected COMPLETED, got %s", completed.Status)
	}
}

func TestCheckOutRequiresConfirmed(test *testing.T) {
	test.Parallel()
	env := newStubEnv(test)
	service := mustNewService(test, env)
	created := mustCreatePending(test, service, "room-101", "2025-06-01", "2025-06-03")

	_, err := service.CheckOut(context.Background(), created.ID)
	if !errors.Is(err, ErrInvalidStateTransition) {
		test.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestCancelReleasesHoldAndNights(test *testing.T) {
	test.Parallel()
	env := newStubEnv(test)
	service := mustNewService(test, env)
	created := mustCreatePending(test, service, "room-202", "2025-06-10", "2025-06-12")

	cancelled, err := service.Cancel(context.Background(), created.ID)
	if err != nil {
		test.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != ReservationStatusCancelled {
		test.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}
	if len(env.gateway.cancelled) != 1 || env.gateway.cancelled[0] != created.PaymentIntentRef {
		test.Fatalf("expected the held intent cancelled")
	}
	transaction := env.mustTransactionByIntent(test, created.PaymentIntentRef)
	if transaction.Status != TransactionStatusCancelled {
		test.Fatalf("expected CANCELLED, got %s", transaction.Status)
	}
	if transaction.CancelledAtUnixUTC == 0 {
		test.Fatalf("expected cancelledAt to be stamped")
	}
	room := env.mustRoom(test, "room-202")
	if room.DatesReserved.Contains(mustDate(test, "2025-06-10")) || room.DatesReserved.Contains(mustDate(test, "2025-06-11")) {
		test.Fatalf("expected the cancelled nights released")
	}
}

func TestCancelTwiceFailsWithoutFurtherMutation(test *testing.T) {
	test.Parallel()
	env := newStubEnv(test)
	service := mustNewService(test, env)
	created := mustCreatePending(test, service, "room-202", "2025-06-10", "2025-06-12")
	if _, err := service.Cancel(context.Background(), created.ID); err != nil {
		test.Fatalf("first cancel: %v", err)
	}

	_, err := service.Cancel(context.Background(), created.ID)
	if !errors.Is(err, ErrInvalidStateTransition) {
		test.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	if len(env.gateway.cancelled) != 1 {
		test.Fatalf("expected no second gateway cancel, got %d", len(env.gateway.cancelled))
	}
}

func TestCancelGatewayFailureLeavesLocalStateUnchanged(test *testing.T) {
	test.Parallel()
	env := newStubEnv(test)
	service := mustNewService(test, env)
	created := mustCreatePending(test, service, "room-202", "2025-06-10", "2025-06-12")
	env.gateway.cancelError = errProcessorFailure

	_, err := service.Cancel(context.Background(), created.ID)
	if !errors.Is(err, errProcessorFailure) {
		test.Fatalf("expected processor failure, got %v", err)
	}
	reservation := env.mustReservation(test, created.ID)
	if reservation.Status != ReservationStatusPending {
		test.Fatalf("expected reservation still PENDING, got %s", reservation.Status)
	}
	room := env.mustRoom(test, "room-202")
	if !room.DatesReserved.Contains(mustDate(test, "2025-06-10")) {
		test.Fatalf("expected the nights still committed")
	}
}

func TestRefundReversesCapturedTransactionOnly(test *testing.T) {
	test.Parallel()
	env := newStubEnv(test)
	service := mustNewService(test, env)
	created := mustCreatePending(test, service, "room-101", "2025-06-01", "2025-06-03")

	if err := service.Refund(context.Background(), created.ID); !errors.Is(err, ErrInvalidStateTransition) {
		test.Fatalf("expected refund of an uncaptured hold to fail, got %v", err)
	}
	if _, err := service.CheckIn(context.Background(), created.ID); err != nil {
		test.Fatalf("check-in: %v", err)
	}
	if err := service.Refund(context.Background(), created.ID); err != nil {
		test.Fatalf("refund: %v", err)
	}
	if len(env.gateway.refunded) != 1 || env.gateway.refunded[0] != created.PaymentIntentRef {
		test.Fatalf("expected the captured intent refunded")
	}
}

func TestReadsReturnPersistedRecords(test *testing.T) {
	test.Parallel()
	env := newStubEnv(test)
	service := mustNewService(test, env)
	created := mustCreatePending(test, service, "room-101", "2025-06-01", "2025-06-03")

	fetched, err := service.Reservation(context.Background(), created.ID)
	if err != nil || fetched.ID != created.ID {
		test.Fatalf("reservation read: %v", err)
	}
	byUser, err := service.ReservationsByUser(context.Background(), "user-1")
	if err != nil || len(byUser) != 1 {
		test.Fatalf("expected 1 reservation for user, got %d (%v)", len(byUser), err)
	}
	transaction, err := service.TransactionByReservation(context.Background(), created.ID)
	if err != nil || transaction.ReservationID != created.ID {
		test.Fatalf("transaction read: %v", err)
	}
	history, err := service.TransactionsByUser(context.Background(), "user-1")
	if err != nil || len(history) != 1 {
		test.Fatalf("expected 1 transaction for user, got %d (%v)", len(history), err)
	}
}
