package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	Name string `json:"name"`
}

func TestDisabledCacheAlwaysLoads(t *testing.T) {
	ctx := context.Background()
	for name, cache := range map[string]*ViewCache[profile]{
		"nil cache": nil,
		"no client": NewViewCache[profile](nil, 0),
	} {
		loads := 0
		load := func(context.Context) (*profile, error) {
			loads++
			return &profile{Name: "Priya"}, nil
		}
		for i := 0; i < 2; i++ {
			v, err := cache.GetOrLoad(ctx, "user:view:u1", load)
			require.NoError(t, err, name)
			assert.Equal(t, "Priya", v.Name, name)
		}
		assert.Equal(t, 2, loads, name)

		_, ok := cache.Get(ctx, "user:view:u1")
		assert.False(t, ok, name)
	}
}

func TestGetOrLoadReturnsLoadError(t *testing.T) {
	boom := errors.New("not found")
	_, err := NewViewCache[profile](nil, 0).GetOrLoad(context.Background(), "k", func(context.Context) (*profile, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}
