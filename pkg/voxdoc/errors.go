package voxdoc

// Error codes as constants
const (
	ErrCodePermissionDenied  = "PERMISSION_DENIED"
	ErrCodeDeviceUnavailable = "DEVICE_UNAVAILABLE"
	ErrCodeConnectionFailed  = "CONNECTION_FAILED"
	ErrCodeConnectionClosed  = "CONNECTION_CLOSED"
	ErrCodeProtocol          = "PROTOCOL_ERROR"
	ErrCodeSelectorNotFound  = "SELECTOR_NOT_FOUND"
	ErrCodeInvalidToolArgs   = "INVALID_TOOL_ARGS"
	ErrCodeAudioDecode       = "AUDIO_DECODE_ERROR"
	ErrCodeGenerationFailed  = "GENERATION_FAILED"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeStoreUnavailable  = "STORE_UNAVAILABLE"
	ErrCodeTokenError        = "TOKEN_ERROR"
	ErrCodeConfigInvalid     = "CONFIG_INVALID"
	ErrCodeJSONParse         = "JSON_PARSE_ERROR"
	ErrCodeTimeout           = "TIMEOUT_ERROR"
	ErrCodeUnknown           = "UNKNOWN_ERROR"
)

// Specific error creators with common codes
func NewPermissionError(message string) *VoxdocError {
	return NewVoxdocError(message, ErrCodePermissionDenied)
}

func NewDeviceError(message string) *VoxdocError {
	return NewVoxdocError(message, ErrCodeDeviceUnavailable).AddDetail("device", "default")
}

func NewConnectionError(message string) *VoxdocError {
	return NewVoxdocError(message, ErrCodeConnectionFailed)
}

func NewProtocolError(message string) *VoxdocError {
	return NewVoxdocError(message, ErrCodeProtocol)
}

func NewSelectorError(selector string) *VoxdocError {
	return NewVoxdocError("no element matches selector", ErrCodeSelectorNotFound).AddDetail("selector", selector)
}

func NewToolArgsError(message string) *VoxdocError {
	return NewVoxdocError(message, ErrCodeInvalidToolArgs)
}

func NewAudioDecodeError(message string) *VoxdocError {
	return NewVoxdocError(message, ErrCodeAudioDecode)
}

func NewGenerationError(message string) *VoxdocError {
	return NewVoxdocError(message, ErrCodeGenerationFailed)
}

func NewRateLimitError(message string) *VoxdocError {
	return NewVoxdocError(message, ErrCodeRateLimited)
}

func NewStoreError(message string) *VoxdocError {
	return NewVoxdocError(message, ErrCodeStoreUnavailable)
}

func NewTokenError(message string) *VoxdocError {
	return NewVoxdocError(message, ErrCodeTokenError)
}

func NewConfigError(message string) *VoxdocError {
	return NewVoxdocError(message, ErrCodeConfigInvalid)
}

func NewJSONError(message string) *VoxdocError {
	return NewVoxdocError(message, ErrCodeJSONParse)
}

func NewTimeoutError(message string) *VoxdocError {
	return NewVoxdocError(message, ErrCodeTimeout)
}

func NewUnknownError(message string) *VoxdocError {
	return NewVoxdocError(message, ErrCodeUnknown)
}

// Helper to wrap any error as VoxdocError
func WrapError(err error, code string) *VoxdocError {
	if err == nil {
		return nil
	}
	vErr := NewVoxdocError(err.Error(), code)
	vErr.err = err
	return vErr
}

// Helper to check if error has specific code
func IsErrorCode(err *VoxdocError, code string) bool {
	if err == nil {
		return false
	}
	return err.Code == code
}

// Helper to add details to existing VoxdocError
func (e *VoxdocError) AddDetail(key string, value interface{}) *VoxdocError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Helper to get error details
func (e *VoxdocError) GetDetail(key string) (interface{}, bool) {
	if e.Details == nil {
		return nil, false
	}
	value, exists := e.Details[key]
	return value, exists
}

// Unwrap exposes the wrapped error to errors.Is/As.
func (e *VoxdocError) Unwrap() error {
	return e.err
}

// Helper to check if error is retryable
func IsRetryableError(err *VoxdocError) bool {
	if err == nil {
		return false
	}
	retryableCodes := []string{
		ErrCodeRateLimited,
		ErrCodeConnectionFailed,
		ErrCodeStoreUnavailable,
		ErrCodeTimeout,
	}
	for _, code := range retryableCodes {
		if err.Code == code {
			return true
		}
	}
	return false
}

// Helper to check if error is critical
func IsCriticalError(err *VoxdocError) bool {
	if err == nil {
		return false
	}
	criticalCodes := []string{
		ErrCodePermissionDenied,
		ErrCodeDeviceUnavailable,
		ErrCodeProtocol,
		ErrCodeConfigInvalid,
	}
	for _, code := range criticalCodes {
		if err.Code == code {
			return true
		}
	}
	return false
}
