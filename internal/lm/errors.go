package lm

// notInitializedError signals that the language model never came up, so
// lyric requests must be refused (mapped to 503 by the HTTP layer).
type notInitializedError struct{ msg string }

func (e notInitializedError) Error() string { return e.msg }

// IsNotInitialized reports whether err means the language model is unusable.
func IsNotInitialized(err error) bool {
	_, ok := err.(notInitializedError)
	return ok
}

// backendUnavailableError signals a missing or unreachable decoding backend.
type backendUnavailableError struct{ msg string }

func (e backendUnavailableError) Error() string { return e.msg }

// IsBackendUnavailable reports whether err indicates a missing/unreachable
// backend.
func IsBackendUnavailable(err error) bool {
	_, ok := err.(backendUnavailableError)
	return ok
}
