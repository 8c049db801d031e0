package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	values map[string][]byte
	ttls   map[string]time.Duration
	err    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, exp time.Duration) *redis.StatusCmd {
	f.values[key] = value.([]byte)
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.values, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	st := NewRedisStore[scratch](rdb, 24*time.Hour)

	s, err := st.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State)

	require.NoError(t, st.Set(ctx, 7, Session[scratch]{State: "awaiting_payment_proof", Data: scratch{ProductID: "MF1", Quantity: 5}}))
	assert.Equal(t, 24*time.Hour, rdb.ttls["fsm:session:7"])

	s, err = st.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, State("awaiting_payment_proof"), s.State)
	assert.Equal(t, scratch{ProductID: "MF1", Quantity: 5}, s.Data)
	assert.False(t, s.UpdatedAt.IsZero())

	require.NoError(t, st.Clear(ctx, 7))
	s, _ = st.Get(ctx, 7)
	assert.Equal(t, StateIdle, s.State)
}

func TestRedisStoreErrors(t *testing.T) {
	rdb := newFakeRedis()
	rdb.err = errors.New("dial tcp: connection refused")
	st := NewRedisStore[scratch](rdb, 0)

	_, err := st.Get(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get")

	rdb.err = nil
	rdb.values["fsm:session:1"] = []byte("{broken")
	_, err = st.Get(context.Background(), 1)
	assert.ErrorContains(t, err, "decode session")
}
