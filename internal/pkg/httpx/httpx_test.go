package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type statusErr int

func (s statusErr) Error() string       { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) HTTPStatusCode() int { return int(s) }

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"429", statusErr(429), true},
		{"503 wrapped", fmt.Errorf("call: %w", statusErr(503)), true},
		{"400", statusErr(400), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := IsRetryableError(tc.err); got != tc.want {
			t.Fatalf("%s: want=%v got=%v", tc.name, tc.want, got)
		}
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "7")
	if got := RetryAfterDuration(resp, time.Second, 5*time.Second); got != 5*time.Second {
		t.Fatalf("capped: want=%v got=%v", 5*time.Second, got)
	}
	if got := RetryAfterDuration(nil, time.Second, 0); got != time.Second {
		t.Fatalf("fallback: want=%v got=%v", time.Second, got)
	}
}

func TestBackoff(t *testing.T) {
	if got := Backoff(0, time.Second, 10*time.Second); got != time.Second {
		t.Fatalf("attempt 0: want=%v got=%v", time.Second, got)
	}
	if got := Backoff(2, time.Second, 10*time.Second); got != 4*time.Second {
		t.Fatalf("attempt 2: want=%v got=%v", 4*time.Second, got)
	}
	if got := Backoff(10, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("attempt 10: want=%v got=%v", 10*time.Second, got)
	}
}
