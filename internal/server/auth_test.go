package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTAuth_RoundTrip(t *testing.T) {
	auth := NewJWTAuth("secret")
	token, err := auth.GenerateToken("alice", "karyawan", time.Hour)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "karyawan", claims.Dataset)
	assert.Equal(t, Issuer, claims.Issuer)
}

func TestJWTAuth_RequiresSubject(t *testing.T) {
	_, err := NewJWTAuth("secret").GenerateToken("", "", time.Hour)
	assert.Error(t, err)
}

func TestJWTAuth_WrongSecret(t *testing.T) {
	token, err := NewJWTAuth("one").GenerateToken("alice", "", time.Hour)
	require.NoError(t, err)

	_, err = NewJWTAuth("two").ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTAuth_Expired(t *testing.T) {
	auth := NewJWTAuth("secret")
	auth.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	token, err := auth.GenerateToken("alice", "", time.Minute)
	require.NoError(t, err)

	auth.now = func() time.Time { return time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC) }
	_, err = auth.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTAuth_MiddlewareSetsSubject(t *testing.T) {
	auth := NewJWTAuth("secret")
	token, err := auth.GenerateToken("alice", "", time.Hour)
	require.NoError(t, err)

	var got string
	h := auth.Middleware("karyawan", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = SubjectFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/karyawan/batch-read", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", got)

	_, ok := SubjectFromContext(context.Background())
	assert.False(t, ok)
}
