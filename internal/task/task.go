// File: internal/task/task.go
// Package task maps the operator's working directory onto voucher work items.
// Files are named "<n>.<anything> (<label>).xlsx"; the sequence number selects
// the file and the parenthesized label feeds the journal description field.
package task

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// FileTask is one voucher spreadsheet queued for upload.
type FileTask struct {
	Seq   int
	Path  string
	Label string
}

var labelPattern = regexp.MustCompile(`\(([^)]+)\)`)

// spreadsheetExts are the workbook formats the ERP importer accepts.
var spreadsheetExts = map[string]bool{
	".xlsx": true,
	".xls":  true,
	".xlsm": true,
}

func isSpreadsheet(name string) bool {
	return spreadsheetExts[strings.ToLower(filepath.Ext(name))]
}

// isOfficeTemp reports whether name is an Office lock file left by an open
// workbook.
func isOfficeTemp(name string) bool {
	return strings.HasPrefix(name, "~$")
}

// FindFile locates the spreadsheet for sequence number n in dir: the name
// must start with "<n>." and carry a workbook extension. When several files
// match, the lexically first one is chosen so repeated runs pick the same
// file. A missing file returns ("", nil); callers decide whether that skips
// or fails.
func FindFile(dir string, n int) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading work directory %s: %w", dir, err)
	}

	prefix := fmt.Sprintf("%d.", n)
	var matches []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if isOfficeTemp(name) || !isSpreadsheet(name) {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return filepath.Join(dir, matches[0]), nil
}

// ExtractLabel pulls the journal label out of the file name: the content of
// the first parenthesized group, trimmed. The label drives a mandatory form
// field, so a file without one is an error, never a defaulted value.
func ExtractLabel(path string) (string, error) {
	name := filepath.Base(path)
	m := labelPattern.FindStringSubmatch(name)
	if m == nil {
		return "", fmt.Errorf("file name %q carries no parenthesized label", name)
	}
	label := strings.TrimSpace(m[1])
	if label == "" {
		return "", fmt.Errorf("file name %q carries an empty label", name)
	}
	return label, nil
}

// NewFileTask builds the work item for sequence n, resolving both the file
// and its label.
func NewFileTask(dir string, n int) (*FileTask, error) {
	path, err := FindFile(dir, n)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}
	label, err := ExtractLabel(path)
	if err != nil {
		return nil, err
	}
	return &FileTask{Seq: n, Path: path, Label: label}, nil
}

// LatestDownload returns the newest spreadsheet in the download directory.
// The export just happened, so a stale result usually means the download
// silently failed; anything older than five minutes is flagged.
func LatestDownload(dir string, logger *zap.Logger) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading download directory %s: %w", dir, err)
	}

	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if isOfficeTemp(name) || !isSpreadsheet(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newestMod) {
			newest = filepath.Join(dir, name)
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no spreadsheet found in %s", dir)
	}
	if age := time.Since(newestMod); age > 5*time.Minute {
		logger.Warn("Newest download is stale; the export may not have landed.",
			zap.String("file", newest),
			zap.Duration("age", age))
	}
	return newest, nil
}
