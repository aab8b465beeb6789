package apperror

import "errors"

// Program errors. Their order defines the custom error codes reported to clients.
var (
	ErrDeserializationFailed = errors.New("deserialization failed")
	ErrGameInProgress        = errors.New("game in progress")
	ErrInvalidMove           = errors.New("invalid move")
	ErrInvalidTimestamp      = errors.New("invalid timestamp")
	ErrNotYourTurn           = errors.New("not your turn")
	ErrPlayerNotFound        = errors.New("player not found")
)

// Host errors.
var (
	ErrMissingSigner      = errors.New("missing required signature")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotEnoughRecords   = errors.New("not enough records")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidInstruction = errors.New("invalid instruction data")
	ErrAccountNotFound    = errors.New("account not found")
	ErrConflict           = errors.New("account modified by a concurrent transaction")
)

const hostCodeBase = 100

var programErrors = []error{
	ErrDeserializationFailed,
	ErrGameInProgress,
	ErrInvalidMove,
	ErrInvalidTimestamp,
	ErrNotYourTurn,
	ErrPlayerNotFound,
}

var hostErrors = []error{
	ErrMissingSigner,
	ErrInvalidArgument,
	ErrNotEnoughRecords,
	ErrInsufficientFunds,
	ErrInvalidInstruction,
	ErrAccountNotFound,
	ErrConflict,
}

// Code returns the numeric code of the first known error in err's chain.
// Program errors map to 0..5, host errors start at 100. Unknown errors report false.
func Code(err error) (uint32, bool) {
	for i, target := range programErrors {
		if errors.Is(err, target) {
			return uint32(i), true
		}
	}

	for i, target := range hostErrors {
		if errors.Is(err, target) {
			return uint32(hostCodeBase + i), true
		}
	}

	return 0, false
}
