// Package jwt verifies the HS256 access tokens issued by the HRIS auth service and
// mints the short-lived tokens used to open event streams.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/user"
	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	tokenTypeAccess = "access"
	tokenTypeSSE    = "sse"

	sseTokenTTL = 5 * time.Minute
)

type Service interface {
	JWTAuth() *jwtauth.JWTAuth
	GenerateAccessToken(claims user.Claims, ttl time.Duration) (token string, expiresAt int64, err error)
	GenerateSSEToken(claims user.Claims) (token string, expiresIn int, err error)
	ValidateSSEToken(tokenString string) (user.Claims, error)
}

type JWTService struct {
	tokenAuth *jwtauth.JWTAuth
	now       func() time.Time
}

func NewJWTService(secretKey string) Service {
	return &JWTService{
		tokenAuth: jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
		now:       time.Now,
	}
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

// GenerateAccessToken signs an access token in the auth service's format.
func (j *JWTService) GenerateAccessToken(claims user.Claims, ttl time.Duration) (token string, expiresAt int64, err error) {
	expiresAt = j.now().Add(ttl).Unix()
	_, token, err = j.tokenAuth.Encode(encodeClaims(claims, tokenTypeAccess, expiresAt))
	return token, expiresAt, err
}

// GenerateSSEToken generates a short-lived token for SSE connections
func (j *JWTService) GenerateSSEToken(claims user.Claims) (token string, expiresIn int, err error) {
	expiresAt := j.now().Add(sseTokenTTL).Unix()
	_, token, err = j.tokenAuth.Encode(encodeClaims(claims, tokenTypeSSE, expiresAt))
	if err != nil {
		return "", 0, err
	}
	return token, int(sseTokenTTL.Seconds()), nil
}

// ValidateSSEToken verifies signature, expiry and token type of an SSE token.
func (j *JWTService) ValidateSSEToken(tokenString string) (user.Claims, error) {
	token, err := jwtauth.VerifyToken(j.tokenAuth, tokenString)
	if errors.Is(err, jwtauth.ErrExpired) || errors.Is(err, jwt.ErrTokenExpired()) {
		return user.Claims{}, user.ErrTokenExpired
	}
	if err != nil {
		return user.Claims{}, fmt.Errorf("%w: %v", user.ErrInvalidToken, err)
	}

	claims, err := token.AsMap(context.Background())
	if err != nil {
		return user.Claims{}, user.ErrInvalidToken
	}
	if tokenType, _ := claims["type"].(string); tokenType != tokenTypeSSE {
		return user.Claims{}, user.ErrInvalidToken
	}
	return ClaimsFromMap(claims)
}

// ClaimsFromMap reads caller identity from decoded token claims. A null or missing
// company_id yields an empty CompanyID.
func ClaimsFromMap(claims map[string]interface{}) (user.Claims, error) {
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return user.Claims{}, user.ErrInvalidToken
	}
	role, ok := claims["role"].(string)
	if !ok {
		return user.Claims{}, user.ErrInvalidToken
	}
	companyID, _ := claims["company_id"].(string)

	return user.Claims{
		UserID:    userID,
		CompanyID: companyID,
		Role:      user.Role(role),
	}, nil
}

// IsAccessToken reports whether decoded claims belong to an access token.
func IsAccessToken(claims map[string]interface{}) bool {
	tokenType, ok := claims["type"].(string)
	return ok && tokenType == tokenTypeAccess
}

func encodeClaims(c user.Claims, tokenType string, expiresAt int64) map[string]interface{} {
	var companyID interface{}
	if c.CompanyID != "" {
		companyID = c.CompanyID
	}
	return map[string]interface{}{
		"user_id":    c.UserID,
		"company_id": companyID,
		"role":       string(c.Role),
		"type":       tokenType,
		"exp":        expiresAt,
	}
}
