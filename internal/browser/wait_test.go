// File: internal/browser/wait_test.go
package browser

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/dkwon-dev/ezvoucher/internal/config"
)

func testWaitConfig() config.WaitConfig {
	return config.WaitConfig{
		Element:            100 * time.Millisecond,
		Clickable:          100 * time.Millisecond,
		PageReady:          100 * time.Millisecond,
		Text:               100 * time.Millisecond,
		PollInterval:       10 * time.Millisecond,
		SettleShort:        time.Millisecond,
		DataTableTimeout:   200 * time.Millisecond,
		TableStabilization: 10 * time.Millisecond,
	}
}

func TestForAnyElementEmptyListReturnsImmediately(t *testing.T) {
	w := NewWaiter(nil, testWaitConfig(), zap.NewNop())

	start := time.Now()
	sel := w.ForAnyElement(context.Background(), nil, 5*time.Second)

	assert.Empty(t, sel)
	assert.Less(t, time.Since(start), 100*time.Millisecond,
		"an empty candidate list must not wait out the timeout")
}

func TestSleepStopsOnCancellation(t *testing.T) {
	w := NewWaiter(nil, testWaitConfig(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	w.Sleep(ctx, 5*time.Second)

	assert.Less(t, time.Since(start), time.Second)
}

func TestForClickableReturnsOnceConditionHolds(t *testing.T) {
	cfg := testWaitConfig()
	w := NewWaiter(nil, cfg, zap.NewNop())

	calls := 0
	w.eval = func(ctx context.Context, expr string) bool {
		calls++
		return calls >= 3
	}

	assert.True(t, w.ForClickable(context.Background(), "#submitButton", cfg.Clickable))
	assert.GreaterOrEqual(t, calls, 3)
}

func TestForClickableTimesOut(t *testing.T) {
	cfg := testWaitConfig()
	w := NewWaiter(nil, cfg, zap.NewNop())
	w.eval = func(ctx context.Context, expr string) bool { return false }

	start := time.Now()
	ok := w.ForClickable(context.Background(), "#submitButton", cfg.Clickable)

	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), cfg.Clickable/2)
	assert.Less(t, time.Since(start), time.Second)
}

func TestForTextMatchesProbedText(t *testing.T) {
	cfg := testWaitConfig()
	w := NewWaiter(nil, cfg, zap.NewNop())

	// The probe expression carries both the scope selector and the wanted
	// text as encoded literals.
	w.eval = func(ctx context.Context, expr string) bool {
		return strings.Contains(expr, jsString(".button-label")) &&
			strings.Contains(expr, jsString("업로드"))
	}

	assert.True(t, w.ForText(context.Background(), ".button-label", "업로드", cfg.Text))
	assert.False(t, w.ForText(context.Background(), ".button-label", "다운로드", cfg.Text))
}

func TestForAnyElementReturnsWinningSelector(t *testing.T) {
	cfg := testWaitConfig()
	w := NewWaiter(nil, cfg, zap.NewNop())
	w.eval = func(ctx context.Context, expr string) bool {
		return strings.Contains(expr, jsString("#userNameInput"))
	}

	sel := w.ForAnyElement(context.Background(),
		[]string{`input[type="email"]`, `#userNameInput`}, cfg.Element)

	assert.Equal(t, `#userNameInput`, sel)
}

func TestJSStringEscapesSelectorLiterals(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`input[type="email"]`, `"input[type=\"email\"]"`},
		{`plain`, `"plain"`},
		{"with\nnewline", `"with\nnewline"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, jsString(tt.in))
	}
}
