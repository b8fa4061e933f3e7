package middleware

import (
	"context"
	"net/http"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/user"
	"github.com/cmlabs-hris/hris-payroll-go/internal/handler/http/response"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

type claimsKey struct{}

// ClaimsFromContext returns the caller identity stored by AuthRequired.
func ClaimsFromContext(ctx context.Context) (user.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(user.Claims)
	return claims, ok
}

// WithClaims stores the caller identity on ctx.
func WithClaims(ctx context.Context, claims user.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// AuthRequired accepts only verified access tokens and exposes their claims through
// ClaimsFromContext. It must run after jwtauth.Verifier.
func AuthRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			response.Unauthorized(w, err.Error())
			return
		}

		if token == nil || !jwt.IsAccessToken(claims) {
			response.HandleError(w, user.ErrInvalidToken)
			return
		}

		identity, err := jwt.ClaimsFromMap(claims)
		if err != nil {
			response.HandleError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), identity)))
	})
}
