package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreCreateDuplicate(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.Create(Assignment{SubscriberID: "a", State: StatePending}))
	assert.ErrorIs(t, s.Create(Assignment{SubscriberID: "a", State: StatePending}), ErrExists)
}

func TestMemStoreCompareAndSwap(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.Create(Assignment{SubscriberID: "a", State: StatePending}))

	next := Assignment{SubscriberID: "a", State: StateAllocated, IPAMPrefixID: "1"}
	require.NoError(t, s.CompareAndSwap("a", StatePending, next))

	got, ok, err := s.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StateAllocated, got.State)

	// ожидаемое состояние устарело — конфликт, запись не трогаем
	err = s.CompareAndSwap("a", StatePending, Assignment{SubscriberID: "a", State: StateActive})
	assert.ErrorIs(t, err, ErrConflict)
	got, _, _ = s.Get("a")
	assert.Equal(t, StateAllocated, got.State)

	err = s.CompareAndSwap("ghost", StatePending, next)
	assert.ErrorIs(t, err, ErrNotFound)
}
