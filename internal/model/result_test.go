package model

import "testing"

func TestFetchStatusString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		status FetchStatus
		want   string
	}{
		{StatusOk, "ok"},
		{StatusTimeout, "timeout"},
		{StatusBlocked, "blocked"},
		{StatusError, "error"},
		{FetchStatus(99), "unknown"},
	}

	for _, tc := range testCases {
		if got := tc.status.String(); got != tc.want {
			t.Errorf("FetchStatus(%d).String() = %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestFetchStatusRetryable(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		status FetchStatus
		want   bool
	}{
		{StatusOk, false},
		{StatusTimeout, true},
		{StatusBlocked, false},
		{StatusError, true},
	}

	for _, tc := range testCases {
		if got := tc.status.Retryable(); got != tc.want {
			t.Errorf("%s.Retryable() = %v, want %v", tc.status, got, tc.want)
		}
	}
}
