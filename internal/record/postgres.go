package record

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// PostgresSource reads fold records from a visit_records table holding the
// raw fold file fields:
//
//	CREATE TABLE visit_records (
//	    fold       INT  NOT NULL,
//	    split      TEXT NOT NULL,
//	    method     TEXT NOT NULL,
//	    line_no    INT  NOT NULL,
//	    diseases   TEXT NOT NULL,
//	    name       TEXT NOT NULL,
//	    dob        TEXT NOT NULL,
//	    visit_date TEXT NOT NULL,
//	    symptoms   TEXT NOT NULL,
//	    herbs      TEXT NOT NULL,
//	    PRIMARY KEY (fold, split, method, line_no)
//	);
//
// Rows are returned in line_no order and go through the same identity
// disambiguation as file loads.
type PostgresSource struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{
		db:     db,
		logger: slog.Default().With("component", "postgres-source"),
	}
}

const selectFoldRecords = `SELECT diseases, name, dob, visit_date, symptoms, herbs
FROM visit_records
WHERE fold = $1 AND split = $2 AND method = $3
ORDER BY line_no`

func (s *PostgresSource) Load(ctx context.Context, split Split, tag string, fold int) ([]VisitRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectFoldRecords, fold, string(split), tag)
	if err != nil {
		return nil, fmt.Errorf("querying %s records for fold %d: %w", split, fold, err)
	}
	defer rows.Close()

	var records []VisitRecord
	taken := make(map[string]struct{})
	for rows.Next() {
		var diseases, name, dob, visitDate, symptoms, herbs string
		if err := rows.Scan(&diseases, &name, &dob, &visitDate, &symptoms, &herbs); err != nil {
			return nil, fmt.Errorf("scanning visit record: %w", err)
		}
		rec := fromFields(diseases, name, dob, visitDate, symptoms, herbs)
		rec.Identity = disambiguate(rec.Identity, taken)
		taken[rec.Identity.Key()] = struct{}{}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating visit records: %w", err)
	}
	s.logger.Debug("records loaded",
		"split", split,
		"method", tag,
		"fold", fold,
		"records", len(records),
	)
	return records, nil
}
