package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructorsWrapSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		status   int
		exit     int
	}{
		{"configuration", Configurationf("bad k1 %v", -1), ErrConfiguration, http.StatusBadRequest, 2},
		{"parse", Parsef("line %d", 3), ErrParse, http.StatusUnprocessableEntity, 3},
		{"lookup", Lookupf("qid %s", "7"), ErrLookup, http.StatusNotFound, 4},
		{"consistency", IndexConsistencyf("doc %s", "d"), ErrIndexConsistency, http.StatusInternalServerError, 5},
		{"io", IOf("open %s", "f"), ErrIO, http.StatusInternalServerError, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("context: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.sentinel)
			}
			if got := HTTPStatusCode(wrapped); got != tt.status {
				t.Errorf("HTTPStatusCode = %d, want %d", got, tt.status)
			}
			if got := ExitCode(wrapped); got != tt.exit {
				t.Errorf("ExitCode = %d, want %d", got, tt.exit)
			}
		})
	}
}

func TestAppErrorMessage(t *testing.T) {
	err := Lookupf("unknown docid %s for qid %s", "d1", "3")
	if got, want := err.Error(), "lookup error: unknown docid d1 for qid 3"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	var appErr *AppError
	if !errors.As(fmt.Errorf("wrap: %w", err), &appErr) || appErr.StatusCode != http.StatusNotFound {
		t.Errorf("errors.As failed or wrong status: %+v", appErr)
	}
}

func TestBareSentinels(t *testing.T) {
	if got := HTTPStatusCode(fmt.Errorf("x: %w", ErrInvalidInput)); got != http.StatusBadRequest {
		t.Errorf("invalid input status = %d", got)
	}
	if got := HTTPStatusCode(errors.New("plain")); got != http.StatusInternalServerError {
		t.Errorf("plain error status = %d", got)
	}
	if ExitCode(nil) != 0 || ExitCode(errors.New("plain")) != 1 {
		t.Error("unexpected exit codes for nil or plain errors")
	}
}
