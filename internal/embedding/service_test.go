package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps HashingEmbedder and records calls.
type countingEmbedder struct {
	*HashingEmbedder
	texts  atomic.Int64
	closed atomic.Bool
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.texts.Add(int64(len(texts)))
	return c.HashingEmbedder.Embed(ctx, texts)
}

func (c *countingEmbedder) Close() error {
	c.closed.Store(true)
	return nil
}

func TestService_LoadsOnceUnderConcurrency(t *testing.T) {
	var loads atomic.Int32
	svc := NewService("test", func() (Embedder, error) {
		loads.Add(1)
		return NewHashingEmbedder(32), nil
	})
	assert.False(t, svc.Loaded())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Embed(context.Background(), []string{"hello"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	assert.True(t, svc.Loaded())
	assert.Equal(t, 32, svc.Dimensions())
	assert.Equal(t, "test", svc.Backend())
}

func TestService_LoadFailure(t *testing.T) {
	cause := errors.New("model file missing")
	svc := NewService("test", func() (Embedder, error) { return nil, cause })

	_, err := svc.Embed(context.Background(), []string{"x"})
	require.ErrorIs(t, err, ErrEmbedding)
	assert.ErrorIs(t, err, cause)
	assert.Zero(t, svc.Dimensions())
	assert.False(t, svc.Loaded())
}

func TestService_EmptyBatch(t *testing.T) {
	called := false
	svc := NewService("test", func() (Embedder, error) {
		called = true
		return NewHashingEmbedder(8), nil
	})
	_, err := svc.Embed(context.Background(), []string{})
	assert.ErrorIs(t, err, ErrEmbedding)
	assert.False(t, called, "empty batch should not load the model")
}

func TestService_CacheServesRepeatedTexts(t *testing.T) {
	inner := &countingEmbedder{HashingEmbedder: NewHashingEmbedder(16)}
	svc := NewService("test", func() (Embedder, error) { return inner, nil }, WithCache(10))
	ctx := context.Background()

	first, err := svc.Embed(ctx, []string{"a", "b"})
	require.NoError(t, err)
	second, err := svc.Embed(ctx, []string{"b", "c", "a"})
	require.NoError(t, err)

	assert.Equal(t, int64(3), inner.texts.Load())
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])
}

func TestService_ReloadAndClose(t *testing.T) {
	var models []*countingEmbedder
	svc := NewService("test", func() (Embedder, error) {
		m := &countingEmbedder{HashingEmbedder: NewHashingEmbedder(8)}
		models = append(models, m)
		return m, nil
	})
	ctx := context.Background()

	_, err := svc.Embed(ctx, []string{"x"})
	require.NoError(t, err)
	require.NoError(t, svc.Reload())
	require.Len(t, models, 1)
	assert.True(t, models[0].closed.Load())
	assert.False(t, svc.Loaded())

	_, err = svc.Embed(ctx, []string{"x"})
	require.NoError(t, err)
	assert.Len(t, models, 2)

	require.NoError(t, svc.Close())
	assert.True(t, models[1].closed.Load())
	_, err = svc.Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, ErrEmbedding)
}

func TestService_ReloadBeforeLoadDoesNotLoad(t *testing.T) {
	loads := 0
	svc := NewService("test", func() (Embedder, error) {
		loads++
		return NewHashingEmbedder(8), nil
	})
	require.NoError(t, svc.Reload())
	assert.Zero(t, loads)
}

func TestEmbedOne(t *testing.T) {
	v, err := EmbedOne(context.Background(), NewHashingEmbedder(8), "")
	require.NoError(t, err)
	assert.Len(t, v, 8)
}
