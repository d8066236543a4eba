package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/simplefinder/internal/finder"
	"github.com/banshee-data/simplefinder/internal/kf"
)

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("db: run not found")

// Run is one invocation of the finder over a set of events.
type Run struct {
	ID          string
	Decay       string
	ConfigJSON  string
	CreatedUnix int64
}

// RunSummary aggregates a run.
type RunSummary struct {
	Run
	Events       int
	Tracks       int
	Combinations int
	Candidates   int
}

// CreateRun records a new run. cfg is stored as JSON for provenance.
func (db *DB) CreateRun(decay string, cfg any) (*Run, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run config: %w", err)
	}
	r := &Run{
		ID:          uuid.NewString(),
		Decay:       decay,
		ConfigJSON:  string(data),
		CreatedUnix: time.Now().Unix(),
	}
	_, err = db.Exec(`INSERT INTO runs (run_id, decay, config_json, created_unix) VALUES (?, ?, ?, ?)`,
		r.ID, r.Decay, r.ConfigJSON, r.CreatedUnix)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return r, nil
}

// GetRun loads a run by ID.
func (db *DB) GetRun(runID string) (*Run, error) {
	r := &Run{}
	err := db.QueryRow(`SELECT run_id, decay, config_json, created_unix FROM runs WHERE run_id = ?`, runID).
		Scan(&r.ID, &r.Decay, &r.ConfigJSON, &r.CreatedUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// RecordEvent stores the per-event counters and the accepted candidates of
// one event in a single transaction.
func (db *DB) RecordEvent(runID, eventID string, nTracks int, stats finder.Stats, cands []finder.Candidate) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO events (run_id, event_id, seq, n_tracks, combinations, accepted)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), -1) + 1 FROM events WHERE run_id = ?), ?, ?, ?)`,
		runID, eventID, runID, nTracks, stats.Combinations, len(cands)); err != nil {
		return fmt.Errorf("failed to insert event %s: %w", eventID, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO candidates (
			candidate_id, run_id, event_id, seq, decay, pdg, charge,
			x, y, z, px, py, pz, e, s, cov_json, mass, mass_err,
			daughters_json, chi2_prim_json, cos_mom_json,
			distance, distance_to_sv, chi2_geo, ndf, prob,
			l, dl, ldl, is_from_pv, cos_topo, chi2_topo
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range cands {
		daughters, err := json.Marshal(c.Daughters)
		if err != nil {
			return fmt.Errorf("candidate %s: %w", c.ID, err)
		}
		cov := encodeFloats(c.Cov[:])
		chi2Prim := encodeFloats(c.Chi2Prim[:])
		cosMom := encodeFloats(c.CosMomSum[:])
		p := c.Params
		if _, err := stmt.Exec(
			c.ID.String(), runID, eventID, i, c.Decay, c.PDG, c.Charge,
			nullIfNaN(p[kf.IX]), nullIfNaN(p[kf.IY]), nullIfNaN(p[kf.IZ]), nullIfNaN(p[kf.IPx]), nullIfNaN(p[kf.IPy]), nullIfNaN(p[kf.IPz]), nullIfNaN(p[kf.IE]), nullIfNaN(p[kf.IS]),
			string(cov), nullIfNaN(c.Mass), nullIfNaN(c.MassErr),
			string(daughters), string(chi2Prim), string(cosMom),
			nullIfNaN(c.Distance), nullIfNaN(c.DistanceToSV), nullIfNaN(c.Chi2Geo), c.NDF, nullIfNaN(c.Prob),
			nullIfNaN(c.L), nullIfNaN(c.DL), nullIfNaN(c.LdL), c.IsFromPV, nullIfNaN(c.CosTopo), nullIfNaN(c.Chi2Topo),
		); err != nil {
			return fmt.Errorf("failed to insert candidate %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

const candidateColumns = `candidate_id, event_id, decay, pdg, charge,
	x, y, z, px, py, pz, e, s, cov_json, mass, mass_err,
	daughters_json, chi2_prim_json, cos_mom_json,
	distance, distance_to_sv, chi2_geo, ndf, prob,
	l, dl, ldl, is_from_pv, cos_topo, chi2_topo`

// qualifiedCandidateColumns is candidateColumns for queries that join events.
const qualifiedCandidateColumns = `c.candidate_id, c.event_id, c.decay, c.pdg, c.charge,
	c.x, c.y, c.z, c.px, c.py, c.pz, c.e, c.s, c.cov_json, c.mass, c.mass_err,
	c.daughters_json, c.chi2_prim_json, c.cos_mom_json,
	c.distance, c.distance_to_sv, c.chi2_geo, c.ndf, c.prob,
	c.l, c.dl, c.ldl, c.is_from_pv, c.cos_topo, c.chi2_topo`

// CandidatesForEvent returns the stored candidates of one event in
// discovery order.
func (db *DB) CandidatesForEvent(runID, eventID string) ([]finder.Candidate, error) {
	rows, err := db.Query(`SELECT `+candidateColumns+` FROM candidates
		WHERE run_id = ? AND event_id = ? ORDER BY seq`, runID, eventID)
	if err != nil {
		return nil, err
	}
	return scanCandidates(rows)
}

// RunCandidates returns every stored candidate of a run, ordered by the
// order the events were recorded in and then by discovery order.
func (db *DB) RunCandidates(runID string) ([]finder.Candidate, error) {
	rows, err := db.Query(`SELECT `+qualifiedCandidateColumns+` FROM candidates c
		JOIN events e ON e.run_id = c.run_id AND e.event_id = c.event_id
		WHERE c.run_id = ? ORDER BY e.seq, c.seq`, runID)
	if err != nil {
		return nil, err
	}
	return scanCandidates(rows)
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	q := `SELECT run_id, decay, config_json, created_unix FROM runs ORDER BY created_unix DESC, run_id`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Decay, &r.ConfigJSON, &r.CreatedUnix); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Masses returns the invariant mass of every candidate of a run in the
// same order as RunCandidates.
func (db *DB) Masses(runID string) ([]float64, error) {
	rows, err := db.Query(`SELECT c.mass FROM candidates c
		JOIN events e ON e.run_id = c.run_id AND e.event_id = c.event_id
		WHERE c.run_id = ? AND c.mass IS NOT NULL ORDER BY e.seq, c.seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var m float64
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Summary aggregates the events and candidates of a run.
func (db *DB) Summary(runID string) (*RunSummary, error) {
	r, err := db.GetRun(runID)
	if err != nil {
		return nil, err
	}
	s := &RunSummary{Run: *r}
	err = db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(n_tracks), 0), COALESCE(SUM(combinations), 0), COALESCE(SUM(accepted), 0)
		FROM events WHERE run_id = ?`, runID).Scan(&s.Events, &s.Tracks, &s.Combinations, &s.Candidates)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func scanCandidates(rows *sql.Rows) ([]finder.Candidate, error) {
	defer rows.Close()

	var out []finder.Candidate
	for rows.Next() {
		var (
			c                                    finder.Candidate
			id, cov, daughters, chi2Prim, cosMom string
		)
		p := &c.Params
		if err := rows.Scan(
			&id, &c.EventID, &c.Decay, &c.PDG, &c.Charge,
			nanIfNull(&p[kf.IX]), nanIfNull(&p[kf.IY]), nanIfNull(&p[kf.IZ]), nanIfNull(&p[kf.IPx]), nanIfNull(&p[kf.IPy]), nanIfNull(&p[kf.IPz]), nanIfNull(&p[kf.IE]), nanIfNull(&p[kf.IS]),
			&cov, nanIfNull(&c.Mass), nanIfNull(&c.MassErr),
			&daughters, &chi2Prim, &cosMom,
			nanIfNull(&c.Distance), nanIfNull(&c.DistanceToSV), nanIfNull(&c.Chi2Geo), &c.NDF, nanIfNull(&c.Prob),
			nanIfNull(&c.L), nanIfNull(&c.DL), nanIfNull(&c.LdL), &c.IsFromPV, nanIfNull(&c.CosTopo), nanIfNull(&c.Chi2Topo),
		); err != nil {
			return nil, err
		}
		var err error
		if c.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("candidate id %q: %w", id, err)
		}
		if err := json.Unmarshal([]byte(daughters), &c.Daughters); err != nil {
			return nil, fmt.Errorf("candidate %s: %w", id, err)
		}
		for _, f := range []struct {
			src string
			dst []float64
		}{
			{cov, c.Cov[:]},
			{chi2Prim, c.Chi2Prim[:]},
			{cosMom, c.CosMomSum[:]},
		} {
			if err := decodeFloats(f.src, f.dst); err != nil {
				return nil, fmt.Errorf("candidate %s: %w", id, err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SQLite stores NaN as NULL. nullIfNaN and nanIfNull map between the two so that
// degenerate candidates survive a round trip.
func nullIfNaN(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

type nullableFloat struct{ dst *float64 }

func nanIfNull(dst *float64) *nullableFloat { return &nullableFloat{dst} }

func (n *nullableFloat) Scan(src any) error {
	var f sql.NullFloat64
	if err := f.Scan(src); err != nil {
		return err
	}
	if !f.Valid {
		*n.dst = math.NaN()
		return nil
	}
	*n.dst = f.Float64
	return nil
}

// encodeFloats writes xs as a JSON array. Non-finite values, which
// encoding/json rejects, are written as the strings "NaN", "+Inf", "-Inf".
func encodeFloats(xs []float64) string {
	buf := make([]byte, 0, 16*len(xs))
	buf = append(buf, '[')
	for i, v := range xs {
		if i > 0 {
			buf = append(buf, ',')
		}
		switch {
		case math.IsNaN(v):
			buf = append(buf, `"NaN"`...)
		case math.IsInf(v, 1):
			buf = append(buf, `"+Inf"`...)
		case math.IsInf(v, -1):
			buf = append(buf, `"-Inf"`...)
		default:
			buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		}
	}
	return string(append(buf, ']'))
}

func decodeFloats(src string, dst []float64) error {
	var raw []any
	if err := json.Unmarshal([]byte(src), &raw); err != nil {
		return err
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("expected %d values, got %d", len(dst), len(raw))
	}
	for i, r := range raw {
		switch v := r.(type) {
		case float64:
			dst[i] = v
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			dst[i] = f
		default:
			return fmt.Errorf("value %d: unexpected %T", i, r)
		}
	}
	return nil
}
