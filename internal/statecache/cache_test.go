package statecache

import (
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	c := New()
	c.Set(KeyRLStats, []byte(`{"total_reward":1.5}`), 0)

	got, ok := c.Get(KeyRLStats)
	require.True(t, ok)
	assert.JSONEq(t, `{"total_reward":1.5}`, string(got))

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestMemoryTTLExpiry(t *testing.T) {
	c := New()
	c.Set(KeyConfidence, []byte("x"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(KeyConfidence)
	assert.False(t, ok)
}

func TestRedisSetAndGet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedis(client)

	mock.ExpectSet(KeyAllocations, []byte(`{"trend":60}`), time.Minute).SetVal("OK")
	c.Set(KeyAllocations, []byte(`{"trend":60}`), time.Minute)

	mock.ExpectGet(KeyAllocations).SetVal(`{"trend":60}`)
	got, ok := c.Get(KeyAllocations)
	require.True(t, ok)
	assert.JSONEq(t, `{"trend":60}`, string(got))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisGetMissIsSilent(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedis(client)

	mock.ExpectGet(KeyRLStats).RedisNil()
	_, ok := c.Get(KeyRLStats)
	assert.False(t, ok)
}

func TestPutJSON(t *testing.T) {
	c := New()
	PutJSON(c, KeyAllocations, map[string]float64{"trend": 62.5}, time.Minute)

	got, ok := c.Get(KeyAllocations)
	require.True(t, ok)
	assert.JSONEq(t, `{"trend":62.5}`, string(got))
}
