package booking

import "testing"

func TestHasAvailabilityDetectsAnyOverlap(test *testing.T) {
	test.Parallel()
	room := Room{ID: "room-1", DatesReserved: NewDateSet(mustDate(test, "2025-06-02"))}

	if room.HasAvailability(mustStay(test, "2025-06-01", "2025-06-03")) {
		test.Fatalf("expected overlap on a committed night")
	}
	if !room.HasAvailability(mustStay(test, "2025-06-03", "2025-06-05")) {
		test.Fatalf("expected a disjoint stay to be free")
	}
}

func TestBackToBackStaysDoNotConflict(test *testing.T) {
	test.Parallel()
	room := Room{ID: "room-1", DatesReserved: NewDateSet()}
	room.ReserveDates(mustStay(test, "2025-06-01", "2025-06-03"))

	// The departure day is excluded, so a stay starting on the
	// check-out date is free.
	if !room.HasAvailability(mustStay(test, "2025-06-03", "2025-06-05")) {
		test.Fatalf("expected a back-to-back stay to be free")
	}
}

func TestHasAvailabilityExcludingIgnoresOwnNights(test *testing.T) {
	test.Parallel()
	room := Room{ID: "room-1", DatesReserved: NewDateSet()}
	current := mustStay(test, "2025-06-01", "2025-06-05")
	room.ReserveDates(current)

	if !room.HasAvailabilityExcluding(mustStay(test, "2025-06-02", "2025-06-04"), current) {
		test.Fatalf("expected a shrink onto own nights to be free")
	}
	room.ReserveDates(mustStay(test, "2025-06-06", "2025-06-07"))
	if room.HasAvailabilityExcluding(mustStay(test, "2025-06-04", "2025-06-07"), current) {
		test.Fatalf("expected a shift onto another stay's night to conflict")
	}
}

func TestReserveAndReleaseDates(test *testing.T) {
	test.Parallel()
	room := Room{ID: "room-1"}
	stay := mustStay(test, "2025-06-01", "2025-06-03")

	room.ReserveDates(stay)
	if len(room.DatesReserved) != 2 {
		test.Fatalf("expected 2 committed nights, got %d", len(room.DatesReserved))
	}

	room.ReleaseDates(stay)
	if len(room.DatesReserved) != 0 {
		test.Fatalf("expected all nights released, got %d", len(room.DatesReserved))
	}

	// Releasing absent nights is a no-op.
	room.ReleaseDates(stay)
	if len(room.DatesReserved) != 0 {
		test.Fatalf("release must be idempotent")
	}
}

func TestDateSetSortedOrdersAscending(test *testing.T) {
	test.Parallel()
	set := NewDateSet(mustDate(test, "2025-06-03"), mustDate(test, "2025-06-01"), mustDate(test, "2025-06-02"))
	sorted := set.Sorted()
	for index, want := range []string{"2025-06-01", "2025-06-02", "2025-06-03"} {
		if sorted[index].String() != want {
			test.Fatalf("expected %s at %d, got %s", want, index, sorted[index])
		}
	}
}
