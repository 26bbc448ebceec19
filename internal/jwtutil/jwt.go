// Package jwtutil extracts claims from bexio access tokens.
package jwtutil

import (
	"fmt"
	"strconv"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Claims are the claims the application reads from a bexio access token.
// Extraction is done without signature verification: the token was just
// received from the provider's token endpoint over TLS, and the claims are
// used for convenience (tenant routing, display), not authentication.
type Claims struct {
	Subject   string
	Email     string
	CompanyID string
	Scope     string
	ExpiresAt int64
}

// ExtractClaims parses a JWT without verification and pulls out the claims
// the application cares about. Providers that embed the tenant use the
// company_id (or login_id) private claim.
func ExtractClaims(tokenString string) (*Claims, error) {
	token, err := jwt.Parse([]byte(tokenString), jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	claims := &Claims{Subject: token.Subject()}
	if !token.Expiration().IsZero() {
		claims.ExpiresAt = token.Expiration().Unix()
	}

	if v, ok := token.Get("email"); ok {
		if email, ok := v.(string); ok {
			claims.Email = email
		}
	}
	if v, ok := token.Get("scope"); ok {
		if scope, ok := v.(string); ok {
			claims.Scope = scope
		}
	}
	if v, ok := token.Get("company_id"); ok {
		claims.CompanyID = stringify(v)
	}
	if claims.CompanyID == "" {
		if v, ok := token.Get("company_user_id"); ok {
			claims.CompanyID = stringify(v)
		}
	}

	return claims, nil
}

// CompanyIDFromToken returns the tenant identifier embedded in the token,
// or empty when the provider omits it.
func CompanyIDFromToken(tokenString string) string {
	claims, err := ExtractClaims(tokenString)
	if err != nil {
		return ""
	}
	return claims.CompanyID
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprintf("%v", val)
	}
}
