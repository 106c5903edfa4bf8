package booking

import "context"

// Reservation returns a single reservation.
func (service *Service) Reservation(ctx context.Context, reservationID string) (Reservation, error) {
	return service.reservations.FindReservation(ctx, reservationID)
}

// ReservationsByUser lists a guest's reservations.
func (service *Service) ReservationsByUser(ctx context.Context, userID string) ([]Reservation, error) {
	return service.reservations.ListReservationsByUser(ctx, userID)
}

// TransactionByReservation returns the live transaction mirror for a
// reservation.
func (service *Service) TransactionByReservation(ctx context.Context, reservationID string) (Transaction, error) {
	return service.transactions.FindTransactionByReservation(ctx, reservationID)
}

// TransactionsByUser lists a guest's transaction history.
func (service *Service) TransactionsByUser(ctx context.Context, userID string) ([]Transaction, error) {
	return service.transactions.ListTransactionsByUser(ctx, userID)
}
