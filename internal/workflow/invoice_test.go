// File: internal/workflow/invoice_test.go
package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonthBounds(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		wantFrom string
		wantTo   string
	}{
		{
			"mid month",
			time.Date(2026, time.September, 14, 10, 0, 0, 0, time.UTC),
			"9/1/2026", "9/30/2026",
		},
		{
			"february leap year",
			time.Date(2024, time.February, 5, 0, 0, 0, 0, time.UTC),
			"2/1/2024", "2/29/2024",
		},
		{
			"december",
			time.Date(2025, time.December, 31, 23, 59, 0, 0, time.UTC),
			"12/1/2025", "12/31/2025",
		},
		{
			"no zero padding",
			time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
			"1/1/2026", "1/31/2026",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := monthBounds(tt.now)
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, tt.wantTo, to)
		})
	}
}

func TestJSQuote(t *testing.T) {
	assert.Equal(t, `"PO-001"`, jsQuote("PO-001"))
	assert.Equal(t, `"say \"hi\""`, jsQuote(`say "hi"`))
}
