package booking

import "context"

// Transaction-ledger mutations. One record tracks each payment-intent
// lifecycle; terminal statuses never revert.

func (service *Service) newAuthorizedTransaction(authorization Authorization, reservationID string, userID string, amount AmountCents) Transaction {
	return Transaction{
		PaymentIntentRef:    authorization.IntentRef,
		PaymentMethodRef:    authorization.PaymentMethodRef,
		ReservationID:       reservationID,
		UserID:              userID,
		Status:              TransactionStatusAuthorized,
		AmountCents:         amount,
		Currency:            service.currency,
		Last4:               authorization.Last4,
		AuthorizedAtUnixUTC: service.nowFn(),
	}
}

// captureTransaction stamps the mirror row for an intent whose funds
// were just captured.
func (service *Service) captureTransaction(ctx context.Context, intentRef string) error {
	transaction, err := service.transactions.FindTransactionByIntent(ctx, intentRef)
	if err != nil {
		return err
	}
	transaction.Status = TransactionStatusCaptured
	transaction.CapturedAtUnixUTC = service.nowFn()
	_, err = service.transactions.SaveTransaction(ctx, transaction)
	return err
}

// cancelTransaction stamps the mirror row for an intent whose hold was
// just released.
func (service *Service) cancelTransaction(ctx context.Context, intentRef string) error {
	transaction, err := service.transactions.FindTransactionByIntent(ctx, intentRef)
	if err != nil {
		return err
	}
	transaction.Status = TransactionStatusCancelled
	transaction.CancelledAtUnixUTC = service.nowFn()
	_, err = service.transactions.SaveTransaction(ctx, transaction)
	return err
}

// reauthorizeTransaction swaps the mirror row onto a replacement
// intent, keeping exactly one live transaction per reservation.
func (service *Service) reauthorizeTransaction(ctx context.Context, transaction Transaction, authorization Authorization, amount AmountCents) (Transaction, error) {
	transaction.PaymentIntentRef = authorization.IntentRef
	transaction.PaymentMethodRef = authorization.PaymentMethodRef
	transaction.Last4 = authorization.Last4
	transaction.Status = TransactionStatusAuthorized
	transaction.AmountCents = amount
	transaction.AuthorizedAtUnixUTC = service.nowFn()
	transaction.CapturedAtUnixUTC = 0
	transaction.CancelledAtUnixUTC = 0
	return service.transactions.SaveTransaction(ctx, transaction)
}
