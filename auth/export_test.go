package auth

import "time"

// SetRetry changes the directory bind retry policy.
func (l *Login) SetRetry(retries int, base time.Duration) {
	l.retries, l.retryBase = retries, base
}
