package reliability

import "time"

// IsRetryableHTTPStatus classifies retryable HTTP status codes from the
// completion service.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsTransientStatus reports statuses worth a single in-call retry without
// surfacing a warning to the pipeline. Auth and quota failures are not
// transient and must reach the caller typed.
func IsTransientStatus(code int) bool {
	return code == 500 || code == 502 || code == 503 || code == 504
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
