package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"crud-scaffold/internal/response"
)

// AdminClaims extends RegisteredClaims with the caller's role.
type AdminClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTMiddleware returns a middleware that validates bearer tokens signed
// with HMAC. It requires `exp`, checks `iss` when expectedIssuer is set and
// injects `X-User-ID` (from `sub`) and `X-User-Role` into request headers.
func NewJWTMiddleware(secret []byte, expectedIssuer string, wr *response.Writer) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if expectedIssuer != "" {
		opts = append(opts, jwt.WithIssuer(expectedIssuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				unauthorized(wr, w, "missing Authorization header")
				return
			}
			parts := strings.Fields(auth)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthorized(wr, w, "invalid Authorization header format")
				return
			}

			var claims AdminClaims
			token, err := parser.ParseWithClaims(parts[1], &claims, func(t *jwt.Token) (interface{}, error) {
				return secret, nil
			})
			if err != nil {
				unauthorized(wr, w, "invalid token: "+err.Error())
				return
			}
			if !token.Valid {
				unauthorized(wr, w, "invalid token")
				return
			}
			if claims.ExpiresAt == nil {
				unauthorized(wr, w, "token missing exp claim")
				return
			}

			r2 := r.Clone(r.Context())
			if claims.Subject != "" {
				r2.Header.Set("X-User-ID", claims.Subject)
			}
			if claims.Role != "" {
				r2.Header.Set("X-User-Role", claims.Role)
			}
			next.ServeHTTP(w, r2)
		})
	}
}

func unauthorized(wr *response.Writer, w http.ResponseWriter, msg string) {
	wr.Fail(w, http.StatusUnauthorized, "Unauthorized", errors.New(msg))
}
