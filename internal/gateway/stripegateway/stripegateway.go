// Package stripegateway adapts the Stripe API to the payment gateway
// contract. Holds are opened as manual-capture payment intents and
// settled or voided by the reservation lifecycle.
package stripegateway

import (
	"context"
	"errors"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/harborview/booking/pkg/booking"
)

const (
	operationAuthorize      = "authorize"
	operationCapture        = "capture"
	operationCancel         = "cancel"
	operationRefund         = "refund"
	operationCreateCustomer = "create_customer"
)

var errMissingAPIKey = errors.New("stripe api key is required")

// Gateway talks to Stripe on behalf of the reservation service.
type Gateway struct {
	api *client.API
}

// New returns a Gateway bound to the given secret key.
func New(apiKey string) (*Gateway, error) {
	if apiKey == "" {
		return nil, errMissingAPIKey
	}
	api := &client.API{}
	api.Init(apiKey, nil)
	return &Gateway{api: api}, nil
}

// Authorize opens a manual-capture hold for the given amount and
// returns the intent reference with card details for the mirror row.
func (gateway *Gateway) Authorize(ctx context.Context, amount booking.AmountCents, currency string, customerRef string, paymentMethodRef string) (booking.Authorization, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amount.Int64()),
		Currency:      stripe.String(currency),
		Customer:      stripe.String(customerRef),
		PaymentMethod: stripe.String(paymentMethodRef),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	intent, err := gateway.api.PaymentIntents.New(params)
	if err != nil {
		return booking.Authorization{}, booking.NewGatewayError(operationAuthorize, "", err)
	}
	return booking.Authorization{
		IntentRef:        intent.ID,
		PaymentMethodRef: paymentMethodRef,
		Last4:            gateway.cardLast4(ctx, paymentMethodRef),
	}, nil
}

// Capture settles a previously authorized hold in full.
func (gateway *Gateway) Capture(ctx context.Context, intentRef string) (booking.AmountCents, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	intent, err := gateway.api.PaymentIntents.Capture(intentRef, params)
	if err != nil {
		return 0, booking.NewGatewayError(operationCapture, intentRef, err)
	}
	captured, err := booking.NewAmountCents(intent.AmountReceived)
	if err != nil {
		return 0, booking.NewGatewayError(operationCapture, intentRef, err)
	}
	return captured, nil
}

// Cancel voids an uncaptured hold.
func (gateway *Gateway) Cancel(ctx context.Context, intentRef string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := gateway.api.PaymentIntents.Cancel(intentRef, params); err != nil {
		return booking.NewGatewayError(operationCancel, intentRef, err)
	}
	return nil
}

// Refund reverses a captured payment in full.
func (gateway *Gateway) Refund(ctx context.Context, intentRef string) error {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(intentRef)}
	params.Context = ctx
	if _, err := gateway.api.Refunds.New(params); err != nil {
		return booking.NewGatewayError(operationRefund, intentRef, err)
	}
	return nil
}

// CreateCustomer provisions a processor-side customer for a new guest
// and returns its reference for the users table.
func (gateway *Gateway) CreateCustomer(ctx context.Context, name string, email string) (string, error) {
	params := &stripe.CustomerParams{
		Name:  stripe.String(name),
		Email: stripe.String(email),
	}
	params.Context = ctx
	customer, err := gateway.api.Customers.New(params)
	if err != nil {
		return "", booking.NewGatewayError(operationCreateCustomer, "", err)
	}
	return customer.ID, nil
}

// cardLast4 is best effort; the mirror row tolerates an empty value
// when the payment method is not a card or the lookup fails.
func (gateway *Gateway) cardLast4(ctx context.Context, paymentMethodRef string) string {
	params := &stripe.PaymentMethodParams{}
	params.Context = ctx
	method, err := gateway.api.PaymentMethods.Get(paymentMethodRef, params)
	if err != nil || method.Card == nil {
		return ""
	}
	return method.Card.Last4
}
