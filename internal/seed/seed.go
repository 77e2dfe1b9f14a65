// Package seed applies plain SQL scripts to the listing database.
package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tair/parts-exchange/pkg/logger"
)

// DefaultDumpFile is looked up in the migrations directory when no dump
// path is configured
const DefaultDumpFile = "db_data.sql"

// Execer is satisfied by *sql.DB and *sql.Tx
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Report counts what a run did
type Report struct {
	Files   int
	Applied int
	Failed  int
}

func (r *Report) add(o Report) {
	r.Files += o.Files
	r.Applied += o.Applied
	r.Failed += o.Failed
}

// SplitStatements cuts a script after every line ending in ';'. Trailing
// text without a terminator is returned as a last statement.
func SplitStatements(script string) []string {
	var (
		stmts []string
		b     strings.Builder
	)
	for _, line := range strings.Split(script, "\n") {
		b.WriteString(line)
		b.WriteString("\n")
		if strings.HasSuffix(strings.TrimSpace(line), ";") {
			if s := strings.TrimSpace(b.String()); s != "" {
				stmts = append(stmts, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}

// ApplyFile executes every statement in path. Failing statements are logged
// and skipped.
func ApplyFile(ctx context.Context, db Execer, path string) (Report, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	report := Report{Files: 1}
	for _, stmt := range SplitStatements(string(raw)) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			report.Failed++
			logger.Logger.Warn().
				Err(err).
				Str("file", filepath.Base(path)).
				Msg("Statement failed, skipping")
			continue
		}
		report.Applied++
	}

	logger.Logger.Info().
		Str("file", filepath.Base(path)).
		Int("applied", report.Applied).
		Int("failed", report.Failed).
		Msg("SQL file applied")
	return report, nil
}

// ApplyDir applies every *.sql file in dir in lexical order. A missing
// directory is not an error.
func ApplyDir(ctx context.Context, db Execer, dir string) (Report, error) {
	var report Report

	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Logger.Info().Str("dir", dir).Msg("No migrations directory, skipping")
		return report, nil
	}
	if err != nil {
		return report, fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return report, fmt.Errorf("%s is not a directory", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return report, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(files)

	for _, f := range files {
		r, err := ApplyFile(ctx, db, f)
		if err != nil {
			return report, err
		}
		report.add(r)
	}
	return report, nil
}

// ImportDump applies a data dump. An empty path falls back to
// DefaultDumpFile inside dir; a missing file is skipped.
func ImportDump(ctx context.Context, db Execer, dir, path string) (Report, error) {
	if path == "" {
		path = filepath.Join(dir, DefaultDumpFile)
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		logger.Logger.Warn().Str("file", path).Msg("Data dump not found, skipping import")
		return Report{}, nil
	}
	return ApplyFile(ctx, db, path)
}
