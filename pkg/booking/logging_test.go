package booking

import (
	"context"
	"testing"
)

type recorderLogger struct {
	entries []OperationLog
}

func (logger *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	logger.entries = append(logger.entries, entry)
}

func (logger *recorderLogger) hasOperation(operation string, status string) bool {
	for _, entry := range logger.entries {
		if entry.Operation == operation && entry.Status == status {
			return true
		}
	}
	return false
}

func TestServiceLogsSuccessfulCreate(test *testing.T) {
	test.Parallel()
	env := newStubEnv(test)
	logger := &recorderLogger{}
	service := mustNewService(test, env, WithOperationLogger(logger))

	created := mustCreatePending(test, service, "room-101", "2025-06-01", "2025-06-03")

	if len(logger.entries) != 1 {
		test.Fatalf("expected 1 entry, got %d", len(logger.entries))
	}
	entry := logger.entries[0]
	if entry.Operation != operationCreate || entry.Status != operationStatusOK {
		test.Fatalf("expected ok create entry, got %+v", entry)
	}
	if entry.ReservationID != created.ID || entry.RoomID != "room-101" || entry.UserID != "user-1" {
		test.Fatalf("expected identifiers recorded, got %+v", entry)
	}
	if entry.Amount != 20000 {
		test.Fatalf("expected 20000 cents recorded, got %d", entry.Amount)
	}
}

func TestServiceLogsFailedOperationWithError(test *testing.T) {
	test.Parallel()
	env := newStubEnv(test)
	logger := &recorderLogger{}
	service := mustNewService(test, env, WithOperationLogger(logger))

	if _, err := service.Cancel(context.Background(), "res-unknown"); err == nil {
		test.Fatalf("expected cancel of unknown reservation to fail")
	}
	if len(logger.entries) != 1 {
		test.Fatalf("expected 1 entry, got %d", len(logger.entries))
	}
	entry := logger.entries[0]
	if entry.Operation != operationCancel || entry.Status != operationStatusError || entry.Error == nil {
		test.Fatalf("expected error cancel entry, got %+v", entry)
	}
}

func TestServiceWithoutLoggerDoesNotPanic(test *testing.T) {
	test.Parallel()
	env := newStubEnv(test)
	service := mustNewService(test, env)
	mustCreatePending(test, service, "room-101", "2025-06-01", "2025-06-03")
}
