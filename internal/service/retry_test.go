package service

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"support_chat/internal/repository"
)

func TestRetryReadRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := retryRead(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.Wrap(driver.ErrBadConn, "query")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryReadStopsOnPermanentErrors(t *testing.T) {
	calls := 0
	err := retryRead(context.Background(), func() error {
		calls++
		return repository.ErrNotFound
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, 1, calls)
}

func TestRetryReadGivesUp(t *testing.T) {
	calls := 0
	err := retryRead(context.Background(), func() error {
		calls++
		return driver.ErrBadConn
	})
	assert.ErrorIs(t, err, driver.ErrBadConn)
	assert.Equal(t, readRetries+1, calls)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, isTransient(nil))
	assert.False(t, isTransient(ErrForbidden))
	assert.True(t, isTransient(driver.ErrBadConn))
}
