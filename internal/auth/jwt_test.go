package auth

import (
	"testing"
	"time"
)

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager("", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	m, err := NewManager("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	token, err := m.GenerateDeviceToken("VA-001")
	if err != nil {
		t.Fatal(err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.DeviceID != "VA-001" {
		t.Errorf("expected device ID VA-001, got %q", claims.DeviceID)
	}
	if claims.Role != "device" {
		t.Errorf("expected role device, got %q", claims.Role)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer, err := NewManager("secret-a", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	verifier, err := NewManager("secret-b", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	token, err := issuer.GenerateDeviceToken("VA-001")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := verifier.ValidateToken(token); err == nil {
		t.Error("expected validation failure with a different secret")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	m, err := NewManager("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	m.ttl = -time.Minute

	token, err := m.GenerateDeviceToken("VA-001")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ValidateToken(token); err == nil {
		t.Error("expected validation failure for expired token")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	m, err := NewManager("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ValidateToken("not.a.token"); err == nil {
		t.Error("expected validation failure for garbage input")
	}
}
