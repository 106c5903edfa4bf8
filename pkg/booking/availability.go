package booking

// HasAvailability reports whether no night of the stay is already
// committed to another reservation.
func (room Room) HasAvailability(stay DateRange) bool {
	for _, day := range stay.Dates() {
		if room.DatesReserved.Contains(day) {
			return false
		}
	}
	return true
}

// HasAvailabilityExcluding checks availability with one existing stay
// ignored, so a reservation can shrink or shift without conflicting
// with its own nights.
func (room Room) HasAvailabilityExcluding(stay DateRange, current DateRange) bool {
	for _, day := range stay.Dates() {
		if current.Contains(day) {
			continue
		}
		if room.DatesReserved.Contains(day) {
			return false
		}
	}
	return true
}

// ReserveDates commits every night of the stay.
func (room *Room) ReserveDates(stay DateRange) {
	if room.DatesReserved == nil {
		room.DatesReserved = NewDateSet()
	}
	for _, day := range stay.Dates() {
		room.DatesReserved.Add(day)
	}
}

// ReleaseDates frees every night of the stay. Absent nights are a
// no-op, which makes release idempotent.
func (room *Room) ReleaseDates(stay DateRange) {
	for _, day := range stay.Dates() {
		room.DatesReserved.Remove(day)
	}
}
