package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:          http.StatusBadRequest,
		KindUnauthenticated:     http.StatusUnauthorized,
		KindForbidden:           http.StatusForbidden,
		KindNotFound:            http.StatusNotFound,
		KindConflict:            http.StatusConflict,
		KindInsufficientBalance: http.StatusBadRequest,
		KindLimitExceeded:       http.StatusBadRequest,
		KindExpired:             http.StatusBadRequest,
		KindRateLimited:         http.StatusTooManyRequests,
		KindUpstream:            http.StatusBadGateway,
		KindUnavailable:         http.StatusServiceUnavailable,
		KindInternal:            http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), string(kind))
	}
}

func TestKindOfWrappedError(t *testing.T) {
	err := fmt.Errorf("placing order: %w", InsufficientBalance("Insufficient balance"))
	assert.Equal(t, KindInsufficientBalance, KindOf(err))
	assert.True(t, Is(err, KindInsufficientBalance))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindInternal))
}

func TestFromDB(t *testing.T) {
	assert.NoError(t, FromDB(nil, "x"))
	assert.Equal(t, KindNotFound, KindOf(FromDB(gorm.ErrRecordNotFound, "Order not found")))
	assert.Equal(t, "Order not found", FromDB(gorm.ErrRecordNotFound, "Order not found").Error())
	assert.Equal(t, KindConflict, KindOf(FromDB(errors.New("UNIQUE constraint failed: users.email"), "")))
	assert.Equal(t, KindUpstream, KindOf(FromDB(errors.New("disk I/O error"), "")))

	original := Forbidden("nope")
	assert.Same(t, original, FromDB(original, "ignored"))
}
