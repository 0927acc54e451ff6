package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerateAndValidateToken(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	userID := uuid.New()

	token, err := manager.GenerateToken(userID, "alice@huddle.local", "Alice")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken error: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("UserID = %s, want %s", claims.UserID, userID)
	}
	if claims.Email != "alice@huddle.local" {
		t.Errorf("Email = %s", claims.Email)
	}
	if claims.Name != "Alice" {
		t.Errorf("Name = %s", claims.Name)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	manager := NewJWTManager("secret-a", time.Hour)
	token, err := manager.GenerateToken(uuid.New(), "a@b.c", "A")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	other := NewJWTManager("secret-b", time.Hour)
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatal("expected validation to fail with wrong secret")
	}
}

func TestValidateExpiredToken(t *testing.T) {
	manager := NewJWTManager("test-secret", -time.Minute)
	token, err := manager.GenerateToken(uuid.New(), "a@b.c", "A")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	if _, err := manager.ValidateToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}
