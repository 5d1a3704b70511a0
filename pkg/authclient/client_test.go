package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshTokens_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/refresh", r.URL.Path)

		rc, err := r.Cookie("refreshToken")
		require.NoError(t, err)
		assert.Equal(t, "old-refresh", rc.Value)

		_ = json.NewEncoder(w).Encode(RefreshResponse{
			AccessToken:  "new-access",
			RefreshToken: "new-refresh",
			AccessExp:    100,
			RefreshExp:   200,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	res, err := c.RefreshTokens(context.Background(), "old-refresh", "old-access")
	require.NoError(t, err)
	assert.Equal(t, "new-access", res.AccessToken)
	assert.Equal(t, "new-refresh", res.RefreshToken)
	assert.EqualValues(t, 100, res.AccessExp)
}

func TestRefreshTokens_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL).RefreshTokens(context.Background(), "r", "a")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrRejected)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Code)
}

func TestRefreshTokens_ServerErrorIsNotRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).RefreshTokens(context.Background(), "r", "a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)
}

func TestRefreshTokens_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, WithTimeout(time.Second)).RefreshTokens(context.Background(), "r", "a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)
}

func TestRefreshTokens_EmptyRefreshToken(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1").RefreshTokens(context.Background(), "", "a")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestRefreshTokens_MissingTokenInBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(RefreshResponse{AccessToken: "only-access"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithHTTPClient(srv.Client())).RefreshTokens(context.Background(), "r", "a")
	require.Error(t, err)
}
