// Package results keeps evaluation runs in a SQLite ledger.
package results

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ieee0824/hiereval/evaluation"
	"github.com/ieee0824/hiereval/scoring"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id           TEXT PRIMARY KEY,
	corpus           TEXT NOT NULL,
	model_path       TEXT NOT NULL,
	epoch            INTEGER NOT NULL,
	task             TEXT NOT NULL,
	mode             TEXT NOT NULL,
	beam_width       INTEGER NOT NULL,
	beam_width_sub   INTEGER NOT NULL,
	joint_decoding   INTEGER NOT NULL,
	resolving_unk    INTEGER NOT NULL,
	score_sub_weight REAL NOT NULL,
	main_fusion      TEXT NOT NULL,
	sub_fusion       TEXT NOT NULL,
	mean_wer         REAL NOT NULL,
	mean_cer         REAL,
	created_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS subset_results (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	data_type  TEXT NOT NULL,
	wer        REAL NOT NULL,
	cer        REAL,
	utterances INTEGER NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS utterance_results (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    TEXT NOT NULL,
	data_type TEXT NOT NULL,
	utt_id    TEXT NOT NULL,
	ref       TEXT NOT NULL,
	hyp       TEXT NOT NULL,
	errors    INTEGER NOT NULL,
	ref_len   INTEGER NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_corpus_mode ON runs(corpus, mode);
`

// Store manages evaluation runs in SQLite. It implements
// evaluation.ResultSink.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a completed run with its subsets and utterances in one
// transaction.
func (s *Store) Record(rc *evaluation.RunContext, rep *evaluation.Report) error {
	runID := rep.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs
		(run_id, corpus, model_path, epoch, task, mode, beam_width, beam_width_sub,
		 joint_decoding, resolving_unk, score_sub_weight, main_fusion, sub_fusion,
		 mean_wer, mean_cer, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, string(rc.Corpus), rc.ModelPath, rep.Epoch, rep.Task, string(rep.Mode),
		rc.Decode.Main.BeamWidth, rc.Decode.Sub.BeamWidth,
		boolInt(rc.Options.JointDecoding), boolInt(rc.Options.ResolvingUnk), rc.Options.Weight(),
		rc.Main.Mode.String(), rc.Sub.Mode.String(),
		rep.Summary.MeanWER, nullIfNoCER(rep.HasCER, rep.Summary.MeanCER),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, sr := range rep.Subsets {
		if _, err := tx.Exec(`INSERT INTO subset_results (run_id, data_type, wer, cer, utterances)
			VALUES (?, ?, ?, ?, ?)`,
			runID, sr.DataType, sr.WER, nullIfNoCER(rep.HasCER, sr.CER), len(sr.Utterances)); err != nil {
			return fmt.Errorf("insert subset %s: %w", sr.DataType, err)
		}
		for _, u := range sr.Utterances {
			if _, err := tx.Exec(`INSERT INTO utterance_results
				(run_id, data_type, utt_id, ref, hyp, errors, ref_len)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				runID, sr.DataType, u.ID, u.Ref, u.Hyp, u.Errors, u.RefLen); err != nil {
				return fmt.Errorf("insert utterance %s: %w", u.ID, err)
			}
		}
	}
	return tx.Commit()
}

// RunSummary is one stored run.
type RunSummary struct {
	RunID     string
	Corpus    string
	Epoch     int
	Task      string
	Mode      scoring.Mode
	MeanWER   float64
	MeanCER   sql.NullFloat64
	CreatedAt time.Time
}

// Runs lists stored runs of a corpus and mode, newest first.
func (s *Store) Runs(corpus string, mode scoring.Mode) ([]RunSummary, error) {
	rows, err := s.db.Query(`SELECT run_id, corpus, epoch, task, mode, mean_wer, mean_cer, created_at
		FROM runs WHERE corpus = ? AND mode = ? ORDER BY created_at DESC`, corpus, string(mode))
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var mode, created string
		if err := rows.Scan(&r.RunID, &r.Corpus, &r.Epoch, &r.Task, &mode, &r.MeanWER, &r.MeanCER, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Mode = scoring.Mode(mode)
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// BestWER returns the lowest mean WER stored for a corpus in the given
// mode. Oracle runs never compete with standard ones.
func (s *Store) BestWER(corpus string, mode scoring.Mode) (float64, bool, error) {
	var best sql.NullFloat64
	err := s.db.QueryRow(`SELECT MIN(mean_wer) FROM runs WHERE corpus = ? AND mode = ?`,
		corpus, string(mode)).Scan(&best)
	if err != nil {
		return 0, false, fmt.Errorf("query best: %w", err)
	}
	return best.Float64, best.Valid, nil
}

// SubsetWER returns the per-subset WER of a run in insertion order.
func (s *Store) SubsetWER(runID string) (map[string]float64, error) {
	rows, err := s.db.Query(`SELECT data_type, wer FROM subset_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query subsets: %w", err)
	}
	defer rows.Close()
	out := make(map[string]float64)
	for rows.Next() {
		var dt string
		var w float64
		if err := rows.Scan(&dt, &w); err != nil {
			return nil, fmt.Errorf("scan subset: %w", err)
		}
		out[dt] = w
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfNoCER(has bool, v float64) any {
	if !has {
		return nil
	}
	return v
}
