package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the "iss" claim of tokens minted by JWTAuth.
const Issuer = "gridsync"

// JWTAuth authenticates batch API requests with HS256 bearer tokens.
type JWTAuth struct {
	secret []byte
	now    func() time.Time
}

// NewJWTAuth creates an authenticator for the given shared secret.
func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{secret: []byte(secret), now: time.Now}
}

// Claims are the JWT claims of a batch API token.
type Claims struct {
	// Dataset restricts the token to one dataset. Empty allows all.
	Dataset string `json:"ds,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken mints a token for subject, valid for ttl.
func (j *JWTAuth) GenerateToken(subject, dataset string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("generate token: subject required")
	}
	now := j.now()
	claims := &Claims{
		Dataset: dataset,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
			Subject:   subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

// ValidateToken parses and verifies a token string.
func (j *JWTAuth) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithTimeFunc(j.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("missing sub in token")
	}
	return claims, nil
}

type subjectKey struct{}

// SubjectFromContext returns the authenticated subject of a request.
func SubjectFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectKey{}).(string)
	return sub, ok
}

// Middleware rejects requests without a valid bearer token for dataset.
func (j *JWTAuth) Middleware(dataset string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeUnauthorized(w, "authorization header required")
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			writeUnauthorized(w, "bearer token required")
			return
		}

		claims, err := j.ValidateToken(tokenString)
		if err != nil {
			writeUnauthorized(w, "invalid token")
			return
		}
		if claims.Dataset != "" && claims.Dataset != dataset {
			writeUnauthorized(w, "token not valid for this dataset")
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
