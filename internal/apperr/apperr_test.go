package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := New(KindDeliveryFailed, "append row", errors.New("quota exceeded"))

	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.NotErrorIs(t, err, ErrNotConnected)

	wrapped := fmt.Errorf("redeliver: %w", err)
	assert.ErrorIs(t, wrapped, ErrDeliveryFailed)
	assert.Equal(t, KindDeliveryFailed, KindOf(wrapped))
}

func TestErrorUnwrapsProviderError(t *testing.T) {
	provider := errors.New("googleapi: Error 404: Requested entity was not found")
	err := New(KindDeliveryFailed, "append row", provider)

	assert.ErrorIs(t, err, provider)
	assert.Contains(t, err.Error(), "append row")
	assert.Contains(t, err.Error(), "404")
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{name: "kind only", err: &Error{Kind: KindNotConnected}, want: "not_connected"},
		{name: "detail", err: New(KindMalformedState, "missing tenant id", nil), want: "malformed_state: missing tenant id"},
		{name: "cause", err: New(KindTokenExchangeFailed, "", errors.New("invalid_grant")), want: "token_exchange_failed: invalid_grant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}
