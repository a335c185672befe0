package inspector

// Envelope is the uniform result of every inspector operation. Exactly one of
// Data and Error is populated, matching Success.
type Envelope[T any] struct {
	Success bool      `json:"success"`
	Data    *T        `json:"data,omitempty"`
	Error   string    `json:"error,omitempty"`
	Kind    ErrorKind `json:"kind,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Succeed wraps data in a successful envelope.
func Succeed[T any](data T, message string) Envelope[T] {
	return Envelope[T]{
		Success: true,
		Data:    &data,
		Message: message,
	}
}

// Fail wraps err in a failed envelope. Errors that are not *Error are
// reported as KindInternal.
func Fail[T any](err error) Envelope[T] {
	return Envelope[T]{
		Success: false,
		Error:   err.Error(),
		Kind:    KindOf(err),
	}
}
