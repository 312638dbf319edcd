package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{StatusPending, StatusAccepted, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusPending, false},
		{StatusAccepted, StatusCancelled, false},
		{StatusAccepted, StatusAccepted, false},
		{StatusCancelled, StatusAccepted, false},
		{StatusCancelled, StatusPending, false},
		{OrderStatus("shipped"), StatusAccepted, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestParseTargetStatus(t *testing.T) {
	st, err := ParseTargetStatus(" Accepted ")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, st)

	st, err = ParseTargetStatus("cancelled")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, st)

	for _, bad := range []string{"", "pending", "shipped"} {
		_, err := ParseTargetStatus(bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}

func TestErrorClassification(t *testing.T) {
	assert.ErrorIs(t, ErrProductNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrOrderNotFound, ErrNotFound)
	assert.ErrorIs(t, TransitionError(StatusAccepted, StatusCancelled), ErrInvalidTransition)

	var err error = &StockShortageError{ProductID: "p1", Requested: 3, Available: 1}
	assert.ErrorIs(t, err, ErrInsufficientStock)
	var short *StockShortageError
	require.True(t, errors.As(err, &short))
	assert.Equal(t, 1, short.Available)
}
