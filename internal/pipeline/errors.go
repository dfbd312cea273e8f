package pipeline

// generationDisabledError signals that the pipeline never initialized, so
// generation requests must be refused (mapped to 503 by the HTTP layer).
type generationDisabledError struct{ msg string }

func (e generationDisabledError) Error() string { return e.msg }

// IsGenerationDisabled reports whether err means the pipeline is not usable.
func IsGenerationDisabled(err error) bool {
	_, ok := err.(generationDisabledError)
	return ok
}

// runtimeUnavailableError signals a missing synthesis runtime so the HTTP
// layer can return 503 Service Unavailable instead of 500.
type runtimeUnavailableError struct{ msg string }

func (e runtimeUnavailableError) Error() string { return e.msg }

// IsRuntimeUnavailable reports whether err indicates a missing/failed
// synthesis runtime.
func IsRuntimeUnavailable(err error) bool {
	_, ok := err.(runtimeUnavailableError)
	return ok
}
