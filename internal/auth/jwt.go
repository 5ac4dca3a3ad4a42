package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleAdmin        = "ADMIN"
	RoleProfessional = "PROFESSIONAL"
	RoleAssistant    = "ASSISTANT"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	// TherapistID links a professional to their own therapist row.
	TherapistID *uuid.UUID `json:"therapist_id,omitempty"`
	// AllowedTherapists is the explicit scope of an assistant account.
	AllowedTherapists []uuid.UUID `json:"allowed_therapists,omitempty"`
}

func BuildJWT(secret []byte, userID, role string, therapistID *uuid.UUID, allowed []uuid.UUID, exp time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(exp)),
		},
		UserID:            userID,
		Role:              role,
		TherapistID:       therapistID,
		AllowedTherapists: allowed,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func ParseJWT(secret []byte, tokenString string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid {
		return c, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}
