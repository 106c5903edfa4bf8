package booking

const (
	operationCreate   = "create"
	operationCheckIn  = "check_in"
	operationCheckOut = "check_out"
	operationCancel   = "cancel"
	operationUpdate   = "update"
	operationRefund   = "refund"
	operationNotify   = "notify"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	lockKeyRoomPrefix        = "room:"
	lockKeyReservationPrefix = "reservation:"

	minorUnitsPerMajor = 100

	defaultCurrency = "usd"
)
