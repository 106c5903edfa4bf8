package booking

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing booking operation.
type OperationLog struct {
	Operation     string
	ReservationID string
	RoomID        string
	UserID        string
	Amount        AmountCents
	Status        string
	Error         error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithNotificationSink registers a sink for reservation events. Sinks
// are invoked in registration order.
func WithNotificationSink(sink NotificationSink) ServiceOption {
	return func(service *Service) {
		if sink != nil {
			service.sinks = append(service.sinks, sink)
		}
	}
}

// WithLocker replaces the in-process locker, e.g. with a distributed one.
func WithLocker(locker Locker) ServiceOption {
	return func(service *Service) {
		if locker != nil {
			service.locker = locker
		}
	}
}

// WithCurrency sets the charge currency (lowercase ISO code).
func WithCurrency(currency string) ServiceOption {
	return func(service *Service) {
		service.currency = currency
	}
}
