package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"voiceswap/internal/apperr"
)

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("assign: %w", apperr.Conflict(apperr.CodeRoomFull, "room is full"))

	if !errors.Is(err, apperr.Conflict(apperr.CodeRoomFull, "")) {
		t.Fatal("expected wrapped error to match by code")
	}
	if errors.Is(err, apperr.Conflict(apperr.CodeWrongState, "")) {
		t.Fatal("did not expect a match for a different code")
	}
}

func TestKindOfUnknownErrorIsInternal(t *testing.T) {
	if got := apperr.KindOf(errors.New("boom")); got != apperr.KindInternal {
		t.Fatalf("expected internal, got %v", got)
	}
	if got := apperr.CodeOf(errors.New("boom")); got != apperr.CodeInternal {
		t.Fatalf("expected INTERNAL code, got %s", got)
	}
}

func TestInternalUnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := apperr.Internal("store unavailable", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if err.Error() != "store unavailable: connection refused" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.KindUnauthorized: http.StatusUnauthorized,
		apperr.KindForbidden:    http.StatusForbidden,
		apperr.KindNotFound:     http.StatusNotFound,
		apperr.KindConflict:     http.StatusConflict,
		apperr.KindBadRequest:   http.StatusBadRequest,
		apperr.KindInternal:     http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := kind.HTTPStatus(); got != want {
			t.Errorf("kind %v: got %d want %d", kind, got, want)
		}
	}
}
