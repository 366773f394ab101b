// Package ylmio writes and reads time-tagged surface coefficients to and from
// an archive subfile.
//
// Every row holds the time, the expansion center, the surface's own LMax and
// then the coefficients in increasing l with m running from -l to l. The
// legend names each coefficient column coef(l,m), so surfaces of different
// resolution can share a subfile as long as it is wide enough.
package ylmio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"shapemap/internal/archive"
	"shapemap/internal/ylm"
)

const headerColumns = 5

var (
	ErrMalformedLegend = errors.New("malformed surface legend")
	ErrMalformedRow    = errors.New("malformed surface row")
)

// TimeMatchError reports that zero or several rows fall within epsilon of
// the requested time.
type TimeMatchError struct {
	Subfile   string
	MatchTime float64
	Epsilon   float64
	Matches   []float64
	Available []float64
}

func (e *TimeMatchError) Error() string {
	if len(e.Matches) == 0 {
		return fmt.Sprintf("no sample of %s within %g of time %g (available times %v)",
			e.Subfile, e.Epsilon, e.MatchTime, e.Available)
	}
	return fmt.Sprintf("%d samples of %s within %g of time %g: %v",
		len(e.Matches), e.Subfile, e.Epsilon, e.MatchTime, e.Matches)
}

// Snapshot is one surface read from a subfile.
type Snapshot struct {
	Time    float64
	Epsilon float64
	Surface ylm.Surface
}

// Legend returns the column names for surfaces up to maxL.
func Legend(maxL int) []string {
	legend := []string{
		"Time",
		"InertialExpansionCenter_x",
		"InertialExpansionCenter_y",
		"InertialExpansionCenter_z",
		"Lmax",
	}
	for l := 0; l <= maxL; l++ {
		for m := -l; m <= l; m++ {
			legend = append(legend, coefColumn(l, m))
		}
	}
	return legend
}

// Row lays out surface at time t in a subfile that is maxL wide.
func Row(surface ylm.Surface, t float64, maxL int) ([]float64, error) {
	lmax := surface.LMax()
	if lmax > maxL {
		return nil, fmt.Errorf("%w: surface lmax %d exceeds column width %d", ErrMalformedRow, lmax, maxL)
	}
	row := make([]float64, headerColumns, headerColumns+(maxL+1)*(maxL+1))
	row[0] = t
	copy(row[1:4], surface.Center[:])
	row[4] = float64(lmax)
	for l := 0; l <= maxL; l++ {
		for m := -l; m <= l; m++ {
			var c float64
			if idx, err := surface.Spherepack.Index(l, m); err == nil && l <= lmax {
				c = surface.Coefficients[idx]
			}
			row = append(row, c)
		}
	}
	return row, nil
}

// WriteSurfaces creates subfile and appends one row per surface.
func WriteSurfaces(ctx context.Context, w archive.Writer, subfile string, times []float64, surfaces []ylm.Surface) error {
	if len(times) != len(surfaces) {
		return fmt.Errorf("%d times for %d surfaces", len(times), len(surfaces))
	}
	maxL := 0
	for _, s := range surfaces {
		maxL = max(maxL, s.LMax())
	}
	if err := w.InsertSubfile(ctx, subfile, Legend(maxL)); err != nil {
		return err
	}
	for i, s := range surfaces {
		row, err := Row(s, times[i], maxL)
		if err != nil {
			return err
		}
		if err := w.Append(ctx, subfile, row); err != nil {
			return err
		}
	}
	return nil
}

// AutoEpsilon is half the smallest spacing between distinct sample times,
// which selects at most one sample. With fewer than two distinct times it
// falls back to a relative tolerance of 1e-12 around matchTime.
func AutoEpsilon(times []float64, matchTime float64) float64 {
	sorted := append([]float64(nil), times...)
	sort.Float64s(sorted)
	smallest := math.Inf(1)
	for i := 1; i < len(sorted); i++ {
		if step := sorted[i] - sorted[i-1]; step > 0 && step < smallest {
			smallest = step
		}
	}
	if math.IsInf(smallest, 1) {
		return 1e-12 * math.Max(1, math.Abs(matchTime))
	}
	return 0.5 * smallest
}

// ReadSurfaceSingleTime returns the unique surface of subfile whose time is
// within epsilon of matchTime. A nil epsilon selects AutoEpsilon.
func ReadSurfaceSingleTime(ctx context.Context, r archive.Reader, subfile string, matchTime float64, epsilon *float64) (Snapshot, error) {
	legend, err := r.Legend(ctx, subfile)
	if err != nil {
		return Snapshot{}, err
	}
	legendL, err := checkLegend(subfile, legend)
	if err != nil {
		return Snapshot{}, err
	}
	rows, err := r.Rows(ctx, subfile)
	if err != nil {
		return Snapshot{}, err
	}

	times := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(legend) {
			return Snapshot{}, fmt.Errorf("%w: %s row %d has %d columns, legend has %d",
				ErrMalformedRow, subfile, i, len(row), len(legend))
		}
		times[i] = row[0]
	}

	eps := AutoEpsilon(times, matchTime)
	if epsilon != nil {
		eps = *epsilon
	}
	var matched []int
	for i, t := range times {
		if math.Abs(t-matchTime) <= eps {
			matched = append(matched, i)
		}
	}
	if len(matched) != 1 {
		matchErr := &TimeMatchError{Subfile: subfile, MatchTime: matchTime, Epsilon: eps, Available: times}
		for _, i := range matched {
			matchErr.Matches = append(matchErr.Matches, times[i])
		}
		return Snapshot{}, matchErr
	}

	row := rows[matched[0]]
	lmax := int(row[4])
	if float64(lmax) != row[4] || lmax < 0 || lmax > legendL {
		return Snapshot{}, fmt.Errorf("%w: %s has Lmax %v with columns up to l=%d", ErrMalformedRow, subfile, row[4], legendL)
	}
	sp, err := ylm.New(lmax, lmax)
	if err != nil {
		return Snapshot{}, err
	}
	coeffs := make([]float64, sp.SpectralSize())
	col := headerColumns
	for l := 0; l <= lmax; l++ {
		for m := -l; m <= l; m++ {
			idx, _ := sp.Index(l, m)
			coeffs[idx] = row[col]
			col++
		}
	}
	return Snapshot{
		Time:    row[0],
		Epsilon: eps,
		Surface: ylm.Surface{Spherepack: sp, Coefficients: coeffs, Center: [3]float64{row[1], row[2], row[3]}},
	}, nil
}

// checkLegend validates the column names and returns the widest l stored.
func checkLegend(subfile string, legend []string) (int, error) {
	if len(legend) < headerColumns+1 {
		return 0, fmt.Errorf("%w: %s has only %d columns", ErrMalformedLegend, subfile, len(legend))
	}
	if legend[0] != "Time" || legend[4] != "Lmax" {
		return 0, fmt.Errorf("%w: %s header is %v", ErrMalformedLegend, subfile, legend[:headerColumns])
	}
	for i, axis := range []string{"x", "y", "z"} {
		if !strings.HasSuffix(legend[1+i], "ExpansionCenter_"+axis) {
			return 0, fmt.Errorf("%w: %s column %d is %q", ErrMalformedLegend, subfile, 1+i, legend[1+i])
		}
	}
	col := headerColumns
	l := 0
	for ; col < len(legend); l++ {
		for m := -l; m <= l; m++ {
			if col >= len(legend) || legend[col] != coefColumn(l, m) {
				return 0, fmt.Errorf("%w: %s expected column %s at %d", ErrMalformedLegend, subfile, coefColumn(l, m), col)
			}
			col++
		}
	}
	return l - 1, nil
}

func coefColumn(l, m int) string {
	return fmt.Sprintf("coef(%d,%d)", l, m)
}
