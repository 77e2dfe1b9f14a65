package seed

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestSplitStatements(t *testing.T) {
	script := "CREATE TABLE a (\n  id INTEGER\n);\n\nINSERT INTO a VALUES (1);\nINSERT INTO a VALUES (2)"

	assert.Equal(t, []string{
		"CREATE TABLE a (\n  id INTEGER\n);",
		"INSERT INTO a VALUES (1);",
		"INSERT INTO a VALUES (2)",
	}, SplitStatements(script))

	assert.Empty(t, SplitStatements("\n  \n"))
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestApplyDirSkipsFailingStatements(t *testing.T) {
	db := openDB(t)
	dir := t.TempDir()
	ctx := context.Background()

	writeFile(t, dir, "001_schema.sql", "CREATE TABLE IF NOT EXISTS parts (id INTEGER PRIMARY KEY, title TEXT NOT NULL);\n")
	writeFile(t, dir, "002_broken.sql", "INSERT INTO nowhere VALUES (1);\nINSERT INTO parts (title) VALUES ('Bolt M6');\n")
	writeFile(t, dir, "README.md", "not sql")

	report, err := ApplyDir(ctx, db, dir)
	require.NoError(t, err)
	assert.Equal(t, Report{Files: 2, Applied: 2, Failed: 1}, report)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM parts").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestApplyDirMissing(t *testing.T) {
	report, err := ApplyDir(context.Background(), openDB(t), filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Zero(t, report.Files)
}

func TestImportDump(t *testing.T) {
	db := openDB(t)
	dir := t.TempDir()
	ctx := context.Background()

	_, err := db.Exec("CREATE TABLE parts (id INTEGER PRIMARY KEY, title TEXT)")
	require.NoError(t, err)

	report, err := ImportDump(ctx, db, dir, "")
	require.NoError(t, err)
	assert.Zero(t, report.Files)

	writeFile(t, dir, DefaultDumpFile, "INSERT INTO parts (title) VALUES ('Clutch');\nINSERT INTO parts (title) VALUES ('Gasket');\n")
	report, err = ImportDump(ctx, db, dir, "")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Applied)
}
