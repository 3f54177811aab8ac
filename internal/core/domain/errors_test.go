package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	ioErr := &StoreIOError{Op: "read catalog", Err: errors.New("connection reset")}
	assert.True(t, IsTransient(ioErr))
	assert.True(t, IsTransient(fmt.Errorf("retrying: %w", ioErr)))

	assert.False(t, IsTransient(ErrValidation))
	assert.False(t, IsTransient(&InsufficientStockError{}))
}

func TestIsRollbackFailure(t *testing.T) {
	rb := &RollbackFailureError{OrderID: 7, Cause: errors.New("write failed"), Unrestored: []string{"ice|bag"}}
	assert.True(t, IsRollbackFailure(rb))
	assert.True(t, IsRollbackFailure(fmt.Errorf("commit: %w", rb)))
	assert.False(t, IsRollbackFailure(errors.New("plain")))

	assert.Contains(t, rb.Error(), "order 7")
	assert.Contains(t, rb.Error(), "ice|bag")
}

func TestInsufficientStockError_EnumeratesAllShortfalls(t *testing.T) {
	err := &InsufficientStockError{Shortfalls: []Shortfall{
		{Product: "Ice", Requested: 45, Available: 40},
		{Product: "Coke", Requested: 10, Available: 2},
	}}
	assert.Contains(t, err.Error(), "Ice: want 45, have 40")
	assert.Contains(t, err.Error(), "Coke: want 10, have 2")
}
