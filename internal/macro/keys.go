// File: internal/macro/keys.go
package macro

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// GroupKeys reads the transformed workbook and collects the unique values of
// the second column from rows whose first column equals cycleNumber. These
// are the purchase-order keys the pending-invoice filter loop iterates over.
// Order of first appearance is preserved so the entry loop is reproducible.
func GroupKeys(filePath string, cycleNumber int, logger *zap.Logger) ([]string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", filePath, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Failed to close workbook.", zap.Error(err))
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", filePath)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}

	cycle := strconv.Itoa(cycleNumber)
	seen := make(map[string]bool)
	var keys []string
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		if strings.TrimSpace(row[0]) != cycle {
			continue
		}
		key := strings.TrimSpace(row[1])
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}

	logger.Info("Collected group keys.",
		zap.String("file", filePath),
		zap.Int("cycle_number", cycleNumber),
		zap.Int("count", len(keys)))
	return keys, nil
}
