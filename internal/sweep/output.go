package sweep

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
)

// CSVWriter wraps csv.Writer with methods for sweep output.
type CSVWriter struct {
	w      *csv.Writer
	params []Param
	nTrue  int
}

// NewCSVWriter writes one column per scanned parameter followed by the
// counts. nTrue is the number of true decays used for efficiency; 0 leaves
// the efficiency column empty.
func NewCSVWriter(w io.Writer, params []Param, nTrue int) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w), params: params, nTrue: nTrue}
}

// Header returns the column names.
func (c *CSVWriter) Header() []string {
	header := make([]string, 0, len(c.params)+7)
	for _, p := range c.params {
		header = append(header, p.Label())
	}
	return append(header, "combinations", "accepted", "signal", "background", "efficiency", "significance", "mean_mass")
}

// WriteHeader writes the header row.
func (c *CSVWriter) WriteHeader() error {
	return c.w.Write(c.Header())
}

// WriteResult writes one grid point.
func (c *CSVWriter) WriteResult(r Result) error {
	row := make([]string, 0, len(r.Values)+7)
	for _, v := range r.Values {
		row = append(row, fmt.Sprintf("%g", v))
	}
	eff := ""
	if e := r.Efficiency(c.nTrue); !math.IsNaN(e) {
		eff = fmt.Sprintf("%.6f", e)
	}
	row = append(row,
		fmt.Sprintf("%d", r.Combinations),
		fmt.Sprintf("%d", r.Accepted),
		fmt.Sprintf("%d", r.Signal),
		fmt.Sprintf("%d", r.Background),
		eff,
		fmt.Sprintf("%.6f", r.Significance()),
		fmt.Sprintf("%.6f", r.MeanMass),
	)
	return c.w.Write(row)
}

// WriteAll writes the header and every result, then flushes.
func (c *CSVWriter) WriteAll(results []Result) error {
	if err := c.WriteHeader(); err != nil {
		return err
	}
	for _, r := range results {
		if err := c.WriteResult(r); err != nil {
			return err
		}
	}
	c.w.Flush()
	return c.w.Error()
}
