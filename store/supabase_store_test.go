package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallReturnsResult(t *testing.T) {
	v, err := call(context.Background(), func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestCallGivesUpOnContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := call(ctx, func() (int, error) {
		<-release
		return 1, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRejectedCredentials(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"legacy invalid grant", errors.New(`response status code 400: {"error":"invalid_grant","error_description":"Invalid login credentials"}`), true},
		{"invalid credentials code", errors.New(`response status code 400: {"code":400,"error_code":"invalid_credentials","msg":"Invalid login credentials"}`), true},
		{"wrapped unauthorized", fmt.Errorf("token: %w", errors.New(`response status code 401: {"msg":"Invalid login credentials"}`)), true},
		{"rate limited", errors.New(`response status code 429: {"msg":"Request rate limit reached"}`), false},
		{"service unavailable", errors.New("response status code 503: upstream connect error"), false},
		{"bad request without credential marker", errors.New(`response status code 400: {"msg":"email_not_confirmed"}`), false},
		{"network failure", errors.New(`Post "https://x.supabase.co/auth/v1/token": dial tcp: connection refused`), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rejectedCredentials(tt.err))
		})
	}
}
