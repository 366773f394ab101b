package archive

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseWriter(t *testing.T, w Writer) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, w.InsertSubfile(ctx, "Ylm_coefs", []string{"Time", "a", "b"}))
	require.ErrorIs(t, w.InsertSubfile(ctx, "Ylm_coefs", []string{"Time"}), ErrSubfileExists)
	require.NoError(t, w.InsertSubfile(ctx, "dt_Ylm_coefs", []string{"Time", "c"}))

	require.NoError(t, w.Append(ctx, "Ylm_coefs", []float64{0.5, 1.0 / 3.0, -2e-300}))
	require.NoError(t, w.Append(ctx, "Ylm_coefs", []float64{1.5, 4, 5}))
	require.ErrorIs(t, w.Append(ctx, "Ylm_coefs", []float64{1}), ErrRowWidth)
	require.ErrorIs(t, w.Append(ctx, "missing", []float64{1}), ErrSubfileNotFound)

	names, err := w.Subfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ylm_coefs", "dt_Ylm_coefs"}, names)

	legend, err := w.Legend(ctx, "Ylm_coefs")
	require.NoError(t, err)
	assert.Equal(t, []string{"Time", "a", "b"}, legend)

	rows, err := w.Rows(ctx, "Ylm_coefs")
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.5, 1.0 / 3.0, -2e-300}, {1.5, 4, 5}}, rows)

	rows, err = w.Rows(ctx, "dt_Ylm_coefs")
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = w.Rows(ctx, "missing")
	require.ErrorIs(t, err, ErrSubfileNotFound)
}

func TestMemoryArchive(t *testing.T) {
	exerciseWriter(t, NewMemory())
}

func TestSQLiteArchive(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "surfaces.db")

	w, err := CreateSQLite(ctx, path, true)
	require.NoError(t, err)
	exerciseWriter(t, w)
	require.NoError(t, w.Close())

	_, err = w.Subfiles(ctx)
	require.ErrorIs(t, err, ErrClosed)

	r, err := OpenSQLiteReader(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	rows, err := r.Rows(ctx, "Ylm_coefs")
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.5, 1.0 / 3.0, -2e-300}, {1.5, 4, 5}}, rows)
}

func TestOpenSQLiteMissingFile(t *testing.T) {
	_, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "nope.db"))
	require.ErrorIs(t, err, ErrNotFound)
}

func sqliteTables(t *testing.T, path string) []string {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	require.NoError(t, err)
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

func TestOpenSQLiteLeavesForeignFileUntouched(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "other.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE other (x INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = OpenSQLite(ctx, path)
	require.ErrorIs(t, err, ErrNotArchive)
	assert.Equal(t, []string{"other"}, sqliteTables(t, path))
}

func TestOpenSQLiteIsReadOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "surfaces.db")
	w, err := CreateSQLite(ctx, path, true)
	require.NoError(t, err)
	require.NoError(t, w.InsertSubfile(ctx, "Ylm_coefs", []string{"Time", "a"}))
	require.NoError(t, w.Close())

	r, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	legend, err := r.Legend(ctx, "Ylm_coefs")
	require.NoError(t, err)
	assert.Equal(t, []string{"Time", "a"}, legend)

	require.Error(t, r.InsertSubfile(ctx, "extra", []string{"Time"}))
	assert.Equal(t, []string{"rows", "subfiles"}, sqliteTables(t, path))
	names, err := r.Subfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ylm_coefs"}, names)
}

func TestMemoryOpenerTracksHandles(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	open := MemoryOpener(map[string]*Memory{"a.db": mem})

	r, err := open(ctx, "a.db")
	require.NoError(t, err)
	assert.Equal(t, 1, mem.OpenHandles())
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, 0, mem.OpenHandles())

	_, err = open(ctx, "b.db")
	require.ErrorIs(t, err, ErrNotFound)
}
