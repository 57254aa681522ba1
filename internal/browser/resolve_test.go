// File: internal/browser/resolve_test.go
package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func stubStrategy(name, sel string, err error, calls *[]string) Strategy {
	return Strategy{
		Name: name,
		Find: func(ctx context.Context) (string, error) {
			*calls = append(*calls, name)
			return sel, err
		},
	}
}

func TestResolveShortCircuitsOnFirstHit(t *testing.T) {
	r := NewResolver(nil, zap.NewNop())
	var calls []string

	sel, err := r.Resolve(context.Background(), "upload button", []Strategy{
		stubStrategy("miss", "", nil, &calls),
		stubStrategy("hit", "#upload", nil, &calls),
		stubStrategy("never", "#other", nil, &calls),
	})

	require.NoError(t, err)
	assert.Equal(t, "#upload", sel)
	assert.Equal(t, []string{"miss", "hit"}, calls, "strategies after the hit must not run")
}

func TestResolveExhaustionListsEveryTriedStrategy(t *testing.T) {
	r := NewResolver(nil, zap.NewNop())
	var calls []string

	sel, err := r.Resolve(context.Background(), "label field", []Strategy{
		stubStrategy("by id", "", nil, &calls),
		stubStrategy("by class", "", errors.New("eval failed"), &calls),
		stubStrategy("heuristic", "", nil, &calls),
	})

	assert.Empty(t, sel)
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "label field", exhausted.Target)
	assert.Equal(t, []string{"by id", "by class", "heuristic"}, exhausted.Tried)
	assert.Contains(t, exhausted.Error(), "label field")
	assert.Contains(t, exhausted.Error(), "heuristic")
}

func TestResolveEmptyStrategyListExhaustsImmediately(t *testing.T) {
	r := NewResolver(nil, zap.NewNop())

	_, err := r.Resolve(context.Background(), "anything", nil)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Empty(t, exhausted.Tried)
}

func TestResolveHonorsCancellation(t *testing.T) {
	r := NewResolver(nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls []string
	_, err := r.Resolve(ctx, "anything", []Strategy{
		stubStrategy("first", "#x", nil, &calls),
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
}

func TestMarkerTokensAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tok := markerToken()
		assert.Len(t, tok, 8)
		assert.False(t, seen[tok], "token %s repeated", tok)
		seen[tok] = true
	}
}
