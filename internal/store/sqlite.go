package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/524D/mzfeat/internal/feature"
)

// Date format for HeaderTable (ISO 8601)
const headerDateFormat = "2006-01-02"

// SQLiteWriter writes features to an SQLite database file
type SQLiteWriter struct {
	db          *sql.DB
	outputPath  string
	featureStmt *sql.Stmt
	chargeStmt  *sql.Stmt
	count       int
}

// NewSQLiteWriter creates the feature database at outputPath
func NewSQLiteWriter(outputPath string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &SQLiteWriter{
		db:         db,
		outputPath: outputPath,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the database schema
func (w *SQLiteWriter) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS FeatureTable (
		FeatureId TEXT PRIMARY KEY,
		Mass DOUBLE,
		HypothesisMass DOUBLE,
		MassErrorPpm DOUBLE,
		RepCharge INTEGER,
		MinCharge INTEGER,
		MaxCharge INTEGER,
		RepScan INTEGER,
		MinScan INTEGER,
		MaxScan INTEGER,
		MinRT DOUBLE,
		MaxRT DOUBLE,
		Abundance DOUBLE,
		EnvelopeCorr DOUBLE,
		EnvelopeDist DOUBLE,
		IsotopeXicCorr DOUBLE,
		ChargeXicCorr DOUBLE,
		Score DOUBLE
	);

	CREATE TABLE IF NOT EXISTS ChargeScoreTable (
		FeatureId TEXT REFERENCES FeatureTable(FeatureId),
		Charge INTEGER,
		Abundance DOUBLE,
		EnvelopeCorr DOUBLE,
		EnvelopeDist DOUBLE,
		IsotopeXicCorr DOUBLE,
		ApexScan INTEGER,
		PRIMARY KEY (FeatureId, Charge)
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		Source TEXT,
		Software TEXT,
		NoofFeatures INTEGER
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *SQLiteWriter) prepareStatements() error {
	var err error

	w.featureStmt, err = w.db.Prepare(`
		INSERT INTO FeatureTable (
			FeatureId, Mass, HypothesisMass, MassErrorPpm, RepCharge,
			MinCharge, MaxCharge, RepScan, MinScan, MaxScan, MinRT, MaxRT,
			Abundance, EnvelopeCorr, EnvelopeDist, IsotopeXicCorr,
			ChargeXicCorr, Score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare feature statement: %w", err)
	}

	w.chargeStmt, err = w.db.Prepare(`
		INSERT INTO ChargeScoreTable (
			FeatureId, Charge, Abundance, EnvelopeCorr, EnvelopeDist,
			IsotopeXicCorr, ApexScan
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare charge score statement: %w", err)
	}

	return nil
}

// WriteFeatures writes features and their per-charge scores in one
// transaction
func (w *SQLiteWriter) WriteFeatures(features []feature.Feature) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	featureStmt := tx.Stmt(w.featureStmt)
	chargeStmt := tx.Stmt(w.chargeStmt)
	for _, f := range features {
		_, err = featureStmt.Exec(
			f.ID, f.Mass, f.HypothesisMass, f.MassErrorPpm, f.RepCharge,
			f.MinCharge, f.MaxCharge, f.RepScan, f.MinScan, f.MaxScan, f.MinRT, f.MaxRT,
			f.Abundance, f.EnvelopeCorr, f.EnvelopeDist, f.IsotopeXicCorr,
			f.ChargeXicCorr, f.Score,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert feature %s: %w", f.ID, err)
		}
		for _, cs := range f.ChargeScores {
			_, err = chargeStmt.Exec(
				f.ID, cs.Charge, cs.Abundance, cs.EnvelopeCorr, cs.EnvelopeDist,
				cs.IsotopeXicCorr, cs.ApexScan,
			)
			if err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to insert charge score %s/%d: %w", f.ID, cs.Charge, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit features: %w", err)
	}
	w.count += len(features)
	return nil
}

// Finalize writes the header table and closes the database
func (w *SQLiteWriter) Finalize(source, software string) error {
	_, err := w.db.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, Source, Software, NoofFeatures)
		VALUES (?, ?, ?, ?, ?)
	`, FormatVersion, time.Now().Format(headerDateFormat), source, software, w.count)
	if err != nil {
		return fmt.Errorf("failed to insert header: %w", err)
	}
	return w.Close()
}

// Close closes the prepared statements and the database without writing
// the header
func (w *SQLiteWriter) Close() error {
	if w.featureStmt != nil {
		w.featureStmt.Close()
	}
	if w.chargeStmt != nil {
		w.chargeStmt.Close()
	}
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
