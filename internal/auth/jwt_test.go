package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBuildAndParseJWT(t *testing.T) {
	secret := []byte("test-secret-min-32-chars!!")
	userID := "user-123"
	therapist := uuid.New()
	tok, err := BuildJWT(secret, userID, RoleProfessional, &therapist, nil, time.Hour)
	if err != nil {
		t.Fatalf("BuildJWT: %v", err)
	}
	claims, err := ParseJWT(secret, tok)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != userID || claims.Role != RoleProfessional {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.TherapistID == nil || *claims.TherapistID != therapist {
		t.Fatalf("therapist claim: %+v", claims.TherapistID)
	}
}

func TestJWTAssistantScope(t *testing.T) {
	secret := []byte("test-secret-min-32-chars!!")
	allowed := []uuid.UUID{uuid.New(), uuid.New()}
	tok, err := BuildJWT(secret, "assist-1", RoleAssistant, nil, allowed, 15*time.Minute)
	if err != nil {
		t.Fatalf("BuildJWT: %v", err)
	}
	claims, err := ParseJWT(secret, tok)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.Role != RoleAssistant || len(claims.AllowedTherapists) != 2 {
		t.Fatalf("assistant claims: %+v", claims)
	}
	if claims.AllowedTherapists[0] != allowed[0] {
		t.Fatalf("scope order: %+v", claims.AllowedTherapists)
	}
}

func TestParseJWTWrongSecret(t *testing.T) {
	tok, err := BuildJWT([]byte("secret-a-0123456789-0123456789"), "u1", RoleAdmin, nil, nil, time.Hour)
	if err != nil {
		t.Fatalf("BuildJWT: %v", err)
	}
	if _, err := ParseJWT([]byte("secret-b-0123456789-0123456789"), tok); err == nil {
		t.Fatal("expected parse failure with wrong secret")
	}
}

func TestParseJWTExpired(t *testing.T) {
	secret := []byte("test-secret-min-32-chars!!")
	tok, err := BuildJWT(secret, "u1", RoleAdmin, nil, nil, -time.Minute)
	if err != nil {
		t.Fatalf("BuildJWT: %v", err)
	}
	if _, err := ParseJWT(secret, tok); err == nil {
		t.Fatal("expected expired token to fail")
	}
}
