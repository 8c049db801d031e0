package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scratch struct {
	ProductID string
	Quantity  int
}

func TestMemoryStoreUnknownUserIsIdle(t *testing.T) {
	st := NewMemoryStore[scratch](time.Hour)
	s, err := st.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State)
	assert.False(t, s.Active())
	assert.Zero(t, s.Data)
}

func TestMemoryStoreSetGetClear(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore[scratch](0)

	require.NoError(t, st.Set(ctx, 1, Session[scratch]{State: "awaiting_quantity", Data: scratch{ProductID: "MF1"}}))
	s, err := st.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, s.Active())
	assert.Equal(t, "MF1", s.Data.ProductID)

	other, _ := st.Get(ctx, 2)
	assert.Equal(t, StateIdle, other.State)

	require.NoError(t, st.Clear(ctx, 1))
	s, _ = st.Get(ctx, 1)
	assert.Equal(t, StateIdle, s.State)
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	st := NewMemoryStore[scratch](time.Hour).WithClock(func() time.Time { return now })

	require.NoError(t, st.Set(ctx, 1, Session[scratch]{State: "awaiting_product_id"}))
	require.NoError(t, st.Set(ctx, 2, Session[scratch]{State: "awaiting_product_id"}))

	now = now.Add(59 * time.Minute)
	s, _ := st.Get(ctx, 1)
	assert.True(t, s.Active())

	// A write refreshes the deadline for user 2 only.
	require.NoError(t, st.Set(ctx, 2, s))
	now = now.Add(2 * time.Minute)

	s, _ = st.Get(ctx, 1)
	assert.Equal(t, StateIdle, s.State)
	s, _ = st.Get(ctx, 2)
	assert.True(t, s.Active())

	now = now.Add(time.Hour)
	assert.Equal(t, 1, st.Sweep())
	assert.Equal(t, 0, st.Len())
}
