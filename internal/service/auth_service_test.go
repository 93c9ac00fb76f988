package service_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"voiceswap/internal/service"
)

func TestIssueAndVerify(t *testing.T) {
	auth := service.NewAuthService("secret", "voiceswap", true)

	token, err := auth.Issue("user-1", "ana@example.com", "Ana", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := auth.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.UserID != "user-1" || id.Email != "ana@example.com" || id.Name != "Ana" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	auth := service.NewAuthService("secret", "voiceswap", true)
	other := service.NewAuthService("other-secret", "voiceswap", true)
	foreign := service.NewAuthService("secret", "someone-else", true)

	forged, _ := other.Issue("user-1", "", "", time.Hour)
	wrongIssuer, _ := foreign.Issue("user-1", "", "", time.Hour)
	expired, _ := auth.Issue("user-1", "", "", -time.Minute)
	noSubject, _ := auth.Issue("", "", "", time.Hour)

	for name, token := range map[string]string{
		"garbage":      "not-a-token",
		"forged":       forged,
		"wrong issuer": wrongIssuer,
		"expired":      expired,
		"no subject":   noSubject,
	} {
		if _, err := auth.Verify(token); !errors.Is(err, service.ErrInvalidToken) {
			t.Errorf("%s: got %v want ErrInvalidToken", name, err)
		}
	}
}

func TestIssueGuest(t *testing.T) {
	auth := service.NewAuthService("secret", "", true)

	guest, err := auth.IssueGuest(" Sam ")
	if err != nil {
		t.Fatalf("issue guest: %v", err)
	}
	if !strings.HasPrefix(guest.UserID, "guest_") {
		t.Fatalf("unexpected guest id %q", guest.UserID)
	}
	id, err := auth.Verify(guest.Token)
	if err != nil {
		t.Fatalf("verify guest: %v", err)
	}
	if id.UserID != guest.UserID || id.Name != "Sam" {
		t.Fatalf("unexpected identity: %+v", id)
	}

	disabled := service.NewAuthService("secret", "", false)
	if _, err := disabled.IssueGuest("Sam"); !errors.Is(err, service.ErrGuestsDisabled) {
		t.Fatalf("got %v want ErrGuestsDisabled", err)
	}
}
