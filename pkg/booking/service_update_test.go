package booking

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestUpdateReplacesHoldAndNights(test *testing.T) {
	test.Parallel()
	env := newStubEnv(test)
	service := mustNewService(test, env)
	created := mustCreatePending(test, service, "room-101", "2025-06-01", "2025-06-03")
	oldIntent := created.PaymentIntentRef

	updated, err := service.Update(context.Background(), created.ID, UpdateInput{
		CheckIn:    mustDate(test, "2025-06-05"),
		CheckOut:   mustDate(test, "2025-06-08"),
		NumGuests:  3,
		TotalPrice: 300.00,
	})
	if err != nil {
		test.Fatalf("update: %v", err)
	}
	if updated.PaymentIntentRef == oldIntent {
		test.Fatalf("expected a replacement intent")
	}
	if updated.NumGuests != 3 || updated.TotalPrice != 300.00 {
		test.Fatalf("expected replacement stay facts, got %+v", updated)
	}
	if len(env.gateway.cancelled) != 1 || env.gateway.cancelled[0] != oldIntent {
		test.Fatalf("expected the old hold cancelled")
	}

	transaction := env.mustTransactionByIntent(test, updated.PaymentIntentRef)
	if transaction.Status != TransactionStatusAuthorized {
		test.Fatalf("expected AUTHORIZED, got %s", transaction.Status)
	}
	if transaction.AmountCents != 30000 {
		test.Fatalf("expected 30000 cents, got %d", transaction.AmountCents)
	}
	if transaction.ID != created.TransactionID {
		test.Fatalf("expected the mirror row swapped in place, not duplicated")
	}

	room := env.mustRoom(test, "room-101")
	for _, released := range []string{"2025-06-01", "2025-06-02"} {
		if room.DatesReserved.Contains(mustDate(test, released)) {
			test.Fatalf("expected %s released", released)
		}
	}
	for _, committed := range []string{"2025-06-05", "2025-06-06", "2025-06-07"} {
		if !room.DatesReserved.Contains(mustDate(test, committed)) {
			test.Fatalf("expected %s committed", committed)
		}
	}
}

func TestUpdateAllowsOverlapWithOwnStay(test *testing.T) {
	test.Parallel()
	env := newStubEnv(test)
	service := mustNewService(test, env)
	created := mustCreatePending(test, service, "room-101", "2025-06-01", "2025-06-05")

	updated, err := service.Update(context.Background(), created.ID, UpdateInput{
		CheckIn:    mustDate(test, "2025-06-02"),
		CheckOut:   mustDate(test, "2025-06-04"),
		NumGuests:  2,
		TotalPrice: 100.00,
	})
	if err != nil {
		test.Fatalf("shrinking onto own nights must not conflict: %v", err)
	}
	room := env.mustRoom(test, "room-101")
	want := NewDateSet(mustDate(test, "2025-06-02"), mustDate(test, "2025-06-03"))
	if !reflect.DeepEqual(room.DatesReserved, want) {
		test.Fatalf("expected %v, got %v", want.Sorted(), room.DatesReserved.Sorted())
	}
	if updated.CheckIn != mustDate(test, "2025-06-02") {
		test.Fatalf("expected the shifted check-in, got %s", updated.CheckIn)
	}
}

func TestUpdateConflictLeavesEverythingUnchanged(test *testing.T) {
	test.Parallel()
	env := newStubEnv(test)
	service := mustNewService(test, env)
	created := mustCreatePending(test, service, "room-101", "2025-06-01", "2025-06-03")
	blocker, err := service.Create(context.Background(), CreateInput{
		UserID:           "user-2",
		RoomID:           "room-101",
		CheckIn:          mustDate(test, "2025-06-04"),
		CheckOut:         mustDate(test, "2025-06-06"),
		NumGuests:        1,
		TotalPrice:       120.00,
		PaymentMethodRef: "pm-visa",
	})
	if err != nil {
		test.Fatalf("blocking reservation: %v", err)
	}

	reservationBefore := env.mustReservation(test, created.ID)
	roomBefore := env.mustRoom(test, "room-101")
	transactionBefore := env.mustTransactionByIntent(test, created.PaymentIntentRef)

	_, err = service.Update(context.Background(), created.ID, UpdateInput{
		CheckIn:    mustDate(test, "2025-06-01"),
		CheckOut:   mustDate(test, "2025-06-05"),
		NumGuests:  2,
		TotalPrice: 400.00,
	})
	if !errors.Is(err, ErrRoomUnavailable) {
		test.Fatalf("expected ErrRoomUnavailable, got %v", err)
	}

	if !reflect.DeepEqual(env.mustReservation(test, created.ID), reservationBefore) {
		test.Fatalf("reservation mutated on conflict")
	}
	if !reflect.DeepEqual(env.mustRoom(test, "room-101"), roomBefore) {
		test.Fatalf("room mutated on conflict")
	}
	if !reflect.DeepEqual(env.mustTransactionByIntent(test, created.PaymentIntentRef), transactionBefore) {
		test.Fatalf("transaction mutated on conflict")
	}
	_ = blocker
}

func TestUpdateRequiresPending(test *testing.T) {
	test.Parallel()
	env := newStubEnv(test)
	service := mustNewService(test, env)
	created := mustCreatePending(test, service, "room-101", "2025-06-01", "2025-06-03")
	if _, err := service.CheckIn(context.Background(), created.ID); err != nil {
		test.Fatalf("check-in: %v", err)
	}

	_, err := service.Update(context.Background(), created.ID, UpdateInput{
		CheckIn:    mustDate(test, "2025-06-05"),
		CheckOut:   mustDate(test, "2025-06-07"),
		NumGuests:  2,
		TotalPrice: 200.00,
	})
	if !errors.Is(err, ErrInvalidStateTransition) {
		test.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestUpdateAuthorizeFailureLeavesOldHoldLive(test *testing.T) {
	test.Parallel()
	env := newStubEnv(test)
	service := mustNewService(test, env)
	created := mustCreatePending(test, service, "room-101", "2025-06-01", "2025-06-03")
	env.gateway.authorizeError = errProcessorFailure

	_, err := service.Update(context.Background(), created.ID, UpdateInput{
		CheckIn:    mustDate(test, "2025-06-05"),
		CheckOut:   mustDate(test, "2025-06-07"),
		NumGuests:  2,
		TotalPrice: 250.00,
	})
	if !errors.Is(err, errProcessorFailure) {
		test.Fatalf("expected processor failure, got %v", err)
	}
	if len(env.gateway.cancelled) != 0 {
		test.Fatalf("old hold must stay live when the replacement fails")
	}
	reservation := env.mustReservation(test, created.ID)
	if reservation.PaymentIntentRef != created.PaymentIntentRef {
		test.Fatalf("reservation mutated on failed update")
	}
}

func TestUpdateOldCancelFailureDiscardsReplacementHold(test *testing.T) {
	test.Parallel()
	env := newStubEnv(test)
	service := mustNewService(test, env)
	created := mustCreatePending(test, service, "room-101", "2025-06-01", "2025-06-03")
	env.gateway.cancelErrorFor = created.PaymentIntentRef

	_, err := service.Update(context.Background(), created.ID, UpdateInput{
		CheckIn:    mustDate(test, "2025-06-05"),
		CheckOut:   mustDate(test, "2025-06-07"),
		NumGuests:  2,
		TotalPrice: 250.00,
	})
	if !errors.Is(err, errProcessorFailure) {
		test.Fatalf("expected processor failure, got %v", err)
	}
	if len(env.gateway.cancelled) != 1 || env.gateway.cancelled[0] == created.PaymentIntentRef {
		test.Fatalf("expected the replacement hold discarded, got %v", env.gateway.cancelled)
	}
	transaction := env.mustTransactionByIntent(test, created.PaymentIntentRef)
	if transaction.Status != TransactionStatusAuthorized {
		test.Fatalf("mirror mutated on failed update")
	}
}

func TestUpdateRejectsInvalidInput(test *testing.T) {
	test.Parallel()
	env := newStubEnv(test)
	service := mustNewService(test, env)
	created := mustCreatePending(test, service, "room-101", "2025-06-01", "2025-06-03")

	_, err := service.Update(context.Background(), created.ID, UpdateInput{
		CheckIn:    mustDate(test, "2025-06-07"),
		CheckOut:   mustDate(test, "2025-06-05"),
		NumGuests:  2,
		TotalPrice: 250.00,
	})
	if !errors.Is(err, ErrInvalidDateRange) {
		test.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
	if len(env.gateway.authorized) != 1 {
		test.Fatalf("gateway reached on invalid input")
	}
}
