package httpx

import "fmt"

// ConfigError reports a missing or invalid required setting. It is raised
// before any network call and aborts only the operation that needed the
// setting.
type ConfigError struct {
	Setting string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration: %s %s", e.Setting, e.Reason)
}

// UpstreamError reports a failed upstream request. Retryable marks the
// timeout/throttle/server-error class; exhausted retries and hard client
// errors both surface as this type, distinguished only by the flag and the
// wrapped cause.
type UpstreamError struct {
	URL       string
	Status    int
	Retryable bool
	Err       error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("upstream %s: status %d", e.URL, e.Status)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}
