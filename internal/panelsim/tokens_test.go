package panelsim

import (
	"errors"
	"testing"
)

func TestTokenIssuerIssueAndVerify(t *testing.T) {
	issuer, err := NewTokenIssuer([]byte("test-secret"), "nj-2316-005k6")
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}

	token, err := issuer.Issue("home-assistant")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if token == "" {
		t.Fatal("Issue() returned empty token")
	}

	client, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if client != "home-assistant" {
		t.Errorf("Verify() client = %q, want home-assistant", client)
	}
}

func TestTokenIssuerRejectsTamperedToken(t *testing.T) {
	issuer, _ := NewTokenIssuer([]byte("test-secret"), "nj-2316-005k6")
	token, _ := issuer.Issue("home-assistant")

	_, err := issuer.Verify(token + "x")
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(tampered) error = %v, want ErrInvalidToken", err)
	}

	_, err = issuer.Verify("not-a-jwt")
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(garbage) error = %v, want ErrInvalidToken", err)
	}
}

func TestTokenIssuerRejectsForeignTokens(t *testing.T) {
	issuer, _ := NewTokenIssuer([]byte("test-secret"), "nj-2316-005k6")
	otherSecret, _ := NewTokenIssuer([]byte("other-secret"), "nj-2316-005k6")
	otherSerial, _ := NewTokenIssuer([]byte("test-secret"), "nj-9999-00xyz")

	token, _ := issuer.Issue("home-assistant")

	if _, err := otherSecret.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify with different secret error = %v, want ErrInvalidToken", err)
	}
	if _, err := otherSerial.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify with different serial error = %v, want ErrInvalidToken", err)
	}
}

func TestTokenIssuerStableAcrossInstances(t *testing.T) {
	first, _ := NewTokenIssuer([]byte("test-secret"), "nj-2316-005k6")
	second, _ := NewTokenIssuer([]byte("test-secret"), "nj-2316-005k6")

	token, err := first.Issue("home-assistant")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	client, err := second.Verify(token)
	if err != nil {
		t.Fatalf("Verify() on fresh issuer error = %v", err)
	}
	if client != "home-assistant" {
		t.Errorf("Verify() client = %q, want home-assistant", client)
	}
}

func TestTokenIssuerTokensAreUnique(t *testing.T) {
	issuer, _ := NewTokenIssuer([]byte("test-secret"), "nj-2316-005k6")

	a, _ := issuer.Issue("home-assistant")
	b, _ := issuer.Issue("home-assistant")
	if a == b {
		t.Error("two grants produced identical tokens")
	}
}

func TestTokenIssuerRequiresSecretAndSerial(t *testing.T) {
	if _, err := NewTokenIssuer(nil, "nj-2316-005k6"); err == nil {
		t.Error("NewTokenIssuer(nil secret) error = nil, want error")
	}
	if _, err := NewTokenIssuer([]byte("test-secret"), ""); err == nil {
		t.Error("NewTokenIssuer(empty serial) error = nil, want error")
	}
}
