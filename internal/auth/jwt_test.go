package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestControllerTokenRoundTrip(t *testing.T) {
	issuer, err := NewIssuer("secret", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}

	token, expiresAt, err := issuer.GenerateControllerToken("42")
	if err != nil {
		t.Fatalf("GenerateControllerToken failed: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Error("Expected expiry in the future")
	}

	claims, err := issuer.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.SessionID != "42" || claims.Role != RoleController || claims.ID == "" {
		t.Errorf("Unexpected claims %+v", claims)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	issuer, _ := NewIssuer("secret", time.Hour)
	other, _ := NewIssuer("other", time.Hour)

	foreign, _, _ := other.GenerateControllerToken("42")

	expiredIssuer, _ := NewIssuer("secret", time.Minute)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _, _ := expiredIssuer.GenerateControllerToken("42")

	sign := func(c *JWTClaims) string {
		s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("secret"))
		return s
	}
	wrongRole := sign(&JWTClaims{SessionID: "42", Role: "device"})
	noSession := sign(&JWTClaims{Role: RoleController})

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "wrong secret", token: foreign, wantErr: jwt.ErrTokenSignatureInvalid},
		{name: "expired", token: expired, wantErr: jwt.ErrTokenExpired},
		{name: "wrong role", token: wrongRole, wantErr: ErrInvalidRole},
		{name: "no session", token: noSession, wantErr: ErrSessionMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.ValidateToken(tt.token)
			if err == nil {
				t.Fatal("Expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	if _, err := NewIssuer("", 0); err == nil {
		t.Error("Expected error for empty secret")
	}
}
