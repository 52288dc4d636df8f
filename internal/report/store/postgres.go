package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"crimewatch/internal/report/models"
	id "crimewatch/pkg/domain"
	"crimewatch/pkg/platform/sentinel"
)

// NotifyChannel is the LISTEN/NOTIFY channel carrying changed report ids.
const NotifyChannel = "report_snapshots"

// PostgresStore persists reports with one jsonb column per field group, so
// enrichment writes never overwrite each other. Every write notifies
// NotifyChannel in the same transaction.
type PostgresStore struct {
	db     *sql.DB
	dsn    string
	logger *slog.Logger
}

// NewPostgres builds the store. dsn is used to open dedicated LISTEN
// connections for Subscribe.
func NewPostgres(db *sql.DB, dsn string, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PostgresStore{db: db, dsn: dsn, logger: logger}
}

const reportColumns = `id, submitter_id, text, location_ref, occurred_at, submitted_at,
	status, media_ref, authenticity, crime_classification, escalation`

func (s *PostgresStore) Create(ctx context.Context, r *models.Report) error {
	auth, err := json.Marshal(r.Authenticity)
	if err != nil {
		return fmt.Errorf("marshal authenticity: %w", err)
	}
	crime, crimeAt, err := marshalCrime(r.CrimeClassification)
	if err != nil {
		return err
	}
	esc, escAt, err := marshalEscalation(r.Escalation)
	if err != nil {
		return err
	}

	return s.withNotify(ctx, r.ID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO reports (id, submitter_id, text, location_ref, occurred_at, submitted_at,
				status, media_ref, authenticity, crime_classification, crime_classified_at,
				escalation, escalation_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO NOTHING
		`,
			uuid.UUID(r.ID), uuid.UUID(r.SubmitterID), r.Text, r.LocationRef,
			nullTime(r.OccurredAt), r.SubmittedAt, string(r.Status), r.MediaRef,
			auth, crime, crimeAt, esc, escAt,
		)
		if err != nil {
			return fmt.Errorf("insert report: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sentinel.ErrConflict
		}
		return nil
	})
}

func (s *PostgresStore) Get(ctx context.Context, reportID id.ReportID) (*models.Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, uuid.UUID(reportID))
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.Filter) ([]*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports`
	var args []any
	if !filter.SubmitterID.IsNil() {
		query += ` WHERE submitter_id = $1`
		args = append(args, uuid.UUID(filter.SubmitterID))
	}
	query += ` ORDER BY submitted_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []*models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PatchCrimeClassification(ctx context.Context, reportID id.ReportID, c models.CrimeClassification) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal crime classification: %w", err)
	}
	return s.patch(ctx, reportID, `
		UPDATE reports SET crime_classification = $2, crime_classified_at = $3
		WHERE id = $1 AND (crime_classified_at IS NULL OR crime_classified_at < $3)
	`, payload, c.ClassifiedAt)
}

func (s *PostgresStore) PatchEscalation(ctx context.Context, reportID id.ReportID, e models.Escalation) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal escalation: %w", err)
	}
	return s.patch(ctx, reportID, `
		UPDATE reports SET escalation = $2, escalation_at = $3
		WHERE id = $1 AND (escalation_at IS NULL OR escalation_at < $3)
	`, payload, e.PredictedAt)
}

func (s *PostgresStore) patch(ctx context.Context, reportID id.ReportID, query string, payload []byte, workedAt time.Time) error {
	return s.withNotify(ctx, reportID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, uuid.UUID(reportID), payload, workedAt)
		if err != nil {
			return fmt.Errorf("patch report: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM reports WHERE id = $1)`, uuid.UUID(reportID)).Scan(&exists); err != nil {
			return fmt.Errorf("check report: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrStale
	})
}

// withNotify runs fn and pg_notify in one transaction so subscribers only
// hear about committed state.
func (s *PostgresStore) withNotify(ctx context.Context, reportID id.ReportID, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, reportID.String()); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var (
		r                   models.Report
		reportID, submitter uuid.UUID
		occurredAt          sql.NullTime
		status              string
		auth                []byte
		crime, escalation   []byte
	)
	if err := row.Scan(&reportID, &submitter, &r.Text, &r.LocationRef, &occurredAt, &r.SubmittedAt,
		&status, &r.MediaRef, &auth, &crime, &escalation); err != nil {
		return nil, err
	}
	r.ID = id.ReportID(reportID)
	r.SubmitterID = id.SubmitterID(submitter)
	r.Status = models.Status(status)
	if occurredAt.Valid {
		r.OccurredAt = occurredAt.Time
	}
	if err := json.Unmarshal(auth, &r.Authenticity); err != nil {
		return nil, fmt.Errorf("decode authenticity: %w", err)
	}
	if len(crime) > 0 {
		r.CrimeClassification = &models.CrimeClassification{}
		if err := json.Unmarshal(crime, r.CrimeClassification); err != nil {
			return nil, fmt.Errorf("decode crime classification: %w", err)
		}
	}
	if len(escalation) > 0 {
		r.Escalation = &models.Escalation{}
		if err := json.Unmarshal(escalation, r.Escalation); err != nil {
			return nil, fmt.Errorf("decode escalation: %w", err)
		}
	}
	return &r, nil
}

func marshalCrime(c *models.CrimeClassification) ([]byte, *time.Time, error) {
	if c == nil {
		return nil, nil, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal crime classification: %w", err)
	}
	return b, &c.ClassifiedAt, nil
}

func marshalEscalation(e *models.Escalation) ([]byte, *time.Time, error) {
	if e == nil {
		return nil, nil, nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal escalation: %w", err)
	}
	return b, &e.PredictedAt, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// Subscribe opens a LISTEN connection and streams a snapshot for every
// notified report. The full filtered set is replayed on start and after each
// reconnect, since notifications sent while disconnected are lost.
func (s *PostgresStore) Subscribe(ctx context.Context, filter models.Filter) (<-chan models.Report, error) {
	listener := pq.NewListener(s.dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.WarnContext(ctx, "report feed listener event", "event", int(ev), "error", err)
		}
	})
	if err := listener.Listen(NotifyChannel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}

	out := make(chan models.Report, subscriberBuffer)
	go func() {
		defer close(out)
		defer func() { _ = listener.Close() }()

		if !s.replay(ctx, filter, out) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				if n == nil {
					if !s.replay(ctx, filter, out) {
						return
					}
					continue
				}
				if !s.emit(ctx, n.Extra, filter, out) {
					return
				}
			case <-time.After(90 * time.Second):
				go func() { _ = listener.Ping() }()
			}
		}
	}()
	return out, nil
}

func (s *PostgresStore) replay(ctx context.Context, filter models.Filter, out chan<- models.Report) bool {
	observedAt := time.Now()
	reports, err := s.List(ctx, filter)
	if err != nil {
		s.logger.WarnContext(ctx, "report feed replay failed", "error", err)
		return ctx.Err() == nil
	}
	for _, r := range reports {
		r.ObservedAt = observedAt
		select {
		case out <- *r:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (s *PostgresStore) emit(ctx context.Context, rawID string, filter models.Filter, out chan<- models.Report) bool {
	reportID, err := id.ParseReportID(rawID)
	if err != nil {
		s.logger.WarnContext(ctx, "report feed ignored malformed id", "payload", rawID)
		return true
	}
	// Stamp before reading: the row can only be newer than observedAt.
	observedAt := time.Now()
	r, err := s.Get(ctx, reportID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "report feed read failed", "report_id", rawID, "error", err)
		}
		return ctx.Err() == nil
	}
	if !filter.Matches(r) {
		return true
	}
	r.ObservedAt = observedAt
	select {
	case out <- *r:
		return true
	case <-ctx.Done():
		return false
	}
}
