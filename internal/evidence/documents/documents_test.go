package documents

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwagate/internal/evidence/providers"
)

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	ref, err := s.Store(ctx, "asset-1/title_deed", []byte("deed scan"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(ref), "doc:asset-1/title_deed:"))

	again, err := s.Store(ctx, "asset-1/title_deed", []byte("deed scan"))
	require.NoError(t, err)
	assert.Equal(t, ref, again, "identical content yields the same reference")

	other, err := s.Store(ctx, "asset-1/title_deed", []byte("another scan"))
	require.NoError(t, err)
	assert.NotEqual(t, ref, other)

	ok, err := s.Exists(ctx, ref)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := s.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("deed scan"), data)

	_, err = s.Store(ctx, "k", nil)
	assert.Equal(t, providers.ErrorBadData, providers.GetCategory(err))

	_, err = s.Load(ctx, "doc:missing")
	assert.Equal(t, providers.ErrorNotFound, providers.GetCategory(err))
}

func TestStaticExtractor(t *testing.T) {
	ctx := context.Background()
	e := NewStaticExtractor()

	src := providers.Fields{"deed_number": "TD-1"}
	e.Register("ref-1", src)
	src["deed_number"] = "mutated"

	got, err := e.Extract(ctx, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "TD-1", got.Get("deed_number"))

	_, err = e.Extract(ctx, "ref-2")
	assert.Equal(t, providers.ErrorNotFound, providers.GetCategory(err))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Extract(cancelled, "ref-1")
	assert.Error(t, err)
}
