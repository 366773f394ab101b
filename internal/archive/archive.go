// Package archive stores tabulated data: named subfiles, each with a column
// legend and an ordered list of rows whose first column is the time.
package archive

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("archive not found")
	ErrNotArchive      = errors.New("file is not a surface archive")
	ErrSubfileNotFound = errors.New("archive subfile not found")
	ErrSubfileExists   = errors.New("archive subfile already exists")
	ErrRowWidth        = errors.New("archive row width does not match legend")
	ErrClosed          = errors.New("archive is closed")
)

// Reader gives read access to an archive. Callers must Close it.
type Reader interface {
	Subfiles(ctx context.Context) ([]string, error)
	Legend(ctx context.Context, subfile string) ([]string, error)
	Rows(ctx context.Context, subfile string) ([][]float64, error)
	Close() error
}

// Writer extends Reader with subfile creation and row appends.
type Writer interface {
	Reader
	InsertSubfile(ctx context.Context, subfile string, legend []string) error
	Append(ctx context.Context, subfile string, row []float64) error
}

// OpenFunc opens an existing archive for reading.
type OpenFunc func(ctx context.Context, path string) (Reader, error)

// OpenSQLiteReader is the default OpenFunc.
func OpenSQLiteReader(ctx context.Context, path string) (Reader, error) {
	return OpenSQLite(ctx, path)
}

func validateRow(subfile string, legend []string, row []float64) error {
	if len(row) != len(legend) {
		return fmt.Errorf("%w: subfile %s has %d columns, row has %d", ErrRowWidth, subfile, len(legend), len(row))
	}
	return nil
}
