package reliability

import "time"

// IsRetryableHTTPStatus classifies Bot API status codes worth another attempt.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
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

// RetryDelay honours a server-provided retry hint (in seconds) and otherwise
// falls back to ExponentialBackoff. The hint is capped too.
func RetryDelay(attempt, retryAfterSeconds int, base, cap time.Duration) time.Duration {
	if retryAfterSeconds > 0 {
		d := time.Duration(retryAfterSeconds) * time.Second
		if d > cap {
			return cap
		}
		return d
	}
	return ExponentialBackoff(attempt, base, cap)
}
