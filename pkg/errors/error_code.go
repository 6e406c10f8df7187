package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrder         ErrorCode = 102
	ErrCodeInvalidSize          ErrorCode = 103
	ErrCodeInvalidPeriod        ErrorCode = 104
	ErrCodeInvalidTriggerPrice  ErrorCode = 105
	ErrCodeInvalidTrailPercent  ErrorCode = 106
	ErrCodeMissingParameter     ErrorCode = 107
	ErrCodeInsufficientData     ErrorCode = 108
	ErrCodeInvalidVersion       ErrorCode = 109

	// Data errors (200-299)
	ErrCodeDataNotFound      ErrorCode = 200
	ErrCodeDataNotOrdered    ErrorCode = 201
	ErrCodeDataDuplicateTime ErrorCode = 202
	ErrCodeDataMalformed     ErrorCode = 203
	ErrCodeQueryFailed       ErrorCode = 204

	// Indicator errors (300-399)
	ErrCodeIndicatorNotFound      ErrorCode = 300
	ErrCodeIndicatorAlreadyExists ErrorCode = 301
	ErrCodeIndicatorNotReady      ErrorCode = 302

	// Strategy errors (400-499)
	ErrCodeStrategyConfigError  ErrorCode = 400
	ErrCodeUnsupportedStrategy  ErrorCode = 401
	ErrCodeStrategyRuntimeError ErrorCode = 402
	ErrCodeMissingSeries        ErrorCode = 403

	// Trading errors (500-599)
	ErrCodeOrderNotFound      ErrorCode = 500
	ErrCodeOrderRejected      ErrorCode = 501
	ErrCodeOrderNotCancelable ErrorCode = 502
	ErrCodeInsufficientCash   ErrorCode = 503
	ErrCodeInsufficientShares ErrorCode = 504

	// Backtest errors (600-699)
	ErrCodeBacktestStateNil    ErrorCode = 600
	ErrCodeBacktestInitFailed  ErrorCode = 601
	ErrCodeBacktestConfigError ErrorCode = 602
	ErrCodeBacktestWriteFailed ErrorCode = 603
	ErrCodeSweepInvalidRange   ErrorCode = 604
)
