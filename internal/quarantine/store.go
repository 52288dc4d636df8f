// Package quarantine stores rejected submissions. Records are write-once:
// there is no update path and nothing moves a record into the report store.
package quarantine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"crimewatch/internal/report/models"
	id "crimewatch/pkg/domain"
	"crimewatch/pkg/platform/sentinel"
)

type MemoryStore struct {
	mu      sync.RWMutex
	records map[id.ReportID]models.QuarantineRecord
}

func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[id.ReportID]models.QuarantineRecord)}
}

// Put stores rec. A second Put for the same id returns sentinel.ErrConflict
// and leaves the original untouched.
func (s *MemoryStore) Put(_ context.Context, rec *models.QuarantineRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return sentinel.ErrConflict
	}
	s.records[rec.ID] = *rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, recordID id.ReportID) (*models.QuarantineRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &rec, nil
}

// ListBySubmitter returns the submitter's records, newest first.
func (s *MemoryStore) ListBySubmitter(_ context.Context, submitterID id.SubmitterID) ([]*models.QuarantineRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.QuarantineRecord
	for _, rec := range s.records {
		if rec.SubmitterID == submitterID {
			out = append(out, &rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QuarantinedAt.After(out[j].QuarantinedAt)
	})
	return out, nil
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, rec *models.QuarantineRecord) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO quarantine_records (id, submitter_id, text, location_ref, reasoning, confidence,
			credibility_delta, quarantined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, uuid.UUID(rec.ID), uuid.UUID(rec.SubmitterID), rec.Text, rec.LocationRef,
		rec.Reasoning, rec.Confidence, rec.CredibilityDelta, rec.QuarantinedAt)
	if err != nil {
		return fmt.Errorf("insert quarantine record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, recordID id.ReportID) (*models.QuarantineRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM quarantine_records WHERE id = $1
	`, uuid.UUID(recordID))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get quarantine record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListBySubmitter(ctx context.Context, submitterID id.SubmitterID) ([]*models.QuarantineRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM quarantine_records WHERE submitter_id = $1
		ORDER BY quarantined_at DESC
	`, uuid.UUID(submitterID))
	if err != nil {
		return nil, fmt.Errorf("list quarantine records: %w", err)
	}
	defer rows.Close()

	var out []*models.QuarantineRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quarantine record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const recordColumns = `id, submitter_id, text, location_ref, reasoning, confidence, credibility_delta, quarantined_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.QuarantineRecord, error) {
	var (
		rec                 models.QuarantineRecord
		recordID, submitter uuid.UUID
	)
	if err := row.Scan(&recordID, &submitter, &rec.Text, &rec.LocationRef,
		&rec.Reasoning, &rec.Confidence, &rec.CredibilityDelta, &rec.QuarantinedAt); err != nil {
		return nil, err
	}
	rec.ID = id.ReportID(recordID)
	rec.SubmitterID = id.SubmitterID(submitter)
	return &rec, nil
}
