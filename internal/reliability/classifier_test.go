package reliability

import (
	"testing"
	"time"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{403, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range cases {
		got := IsRetryableHTTPStatus(tc.code)
		if got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestExponentialBackoffCap(t *testing.T) {
	base := 100 * time.Millisecond
	capDur := 700 * time.Millisecond
	if got := ExponentialBackoff(0, base, capDur); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(2, base, capDur); got != 400*time.Millisecond {
		t.Fatalf("attempt 2 = %v, want %v", got, 400*time.Millisecond)
	}
	if got := ExponentialBackoff(10, base, capDur); got != capDur {
		t.Fatalf("attempt 10 = %v, want %v", got, capDur)
	}
}

func TestRetryDelayPrefersServerHint(t *testing.T) {
	if got := RetryDelay(0, 3, time.Second, time.Minute); got != 3*time.Second {
		t.Fatalf("RetryDelay(hint=3) = %v, want 3s", got)
	}
	if got := RetryDelay(0, 600, time.Second, 30*time.Second); got != 30*time.Second {
		t.Fatalf("RetryDelay(hint=600) = %v, want cap", got)
	}
	if got := RetryDelay(1, 0, time.Second, time.Minute); got != 2*time.Second {
		t.Fatalf("RetryDelay(no hint) = %v, want 2s", got)
	}
}
