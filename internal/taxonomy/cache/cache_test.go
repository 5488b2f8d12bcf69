package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spigell/skill-mapper/internal/taxonomy"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingClient struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingClient) Name() string { return "ESCO" }

func (c *countingClient) Search(_ context.Context, query, _ string, _ int) ([]taxonomy.Candidate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []taxonomy.Candidate{{ID: "1", URI: "http://esco/skill/1", Title: query}}, nil
}

func setupCache(t *testing.T, upstream taxonomy.Client) (*miniredis.Miniredis, *Client, *[]bool) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	var hits []bool
	c, err := New(upstream, Config{Addr: mr.Addr(), TTL: time.Minute}, func(_ string, hit bool) {
		hits = append(hits, hit)
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return mr, c, &hits
}

func TestSearchIsCached(t *testing.T) {
	upstream := &countingClient{}
	mr, c, hits := setupCache(t, upstream)
	ctx := context.Background()

	first, err := c.Search(ctx, "Python", "en", 20)
	require.NoError(t, err)
	second, err := c.Search(ctx, "  python ", "EN", 20)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, upstream.calls)
	assert.Equal(t, []bool{false, true}, *hits)
	assert.Len(t, mr.Keys(), 1)
	assert.Equal(t, time.Minute, mr.TTL(mr.Keys()[0]))

	_, err = c.Search(ctx, "Python", "en", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, upstream.calls, "different limit must not share an entry")
}

func TestSearchFallsBackWhenRedisIsDown(t *testing.T) {
	upstream := &countingClient{}
	mr, c, _ := setupCache(t, upstream)
	mr.Close()

	candidates, err := c.Search(context.Background(), "teamwork", "en", 20)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
	assert.Equal(t, 1, upstream.calls)
}

func TestSearchDoesNotCacheErrors(t *testing.T) {
	upstream := &countingClient{err: taxonomy.ErrUnavailable}
	mr, c, _ := setupCache(t, upstream)

	_, err := c.Search(context.Background(), "teamwork", "en", 20)
	assert.True(t, errors.Is(err, taxonomy.ErrUnavailable))
	assert.Empty(t, mr.Keys())
	assert.Equal(t, "ESCO", c.Name())
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Config{Addr: "localhost:6379"}, nil, nil)
	assert.Error(t, err)
	_, err = New(&countingClient{}, Config{}, nil, nil)
	assert.Error(t, err)
}
