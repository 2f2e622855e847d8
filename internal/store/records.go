package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cardscan/internal/services"
)

// ScanRecord is one append-only audit row. Outcome columns are written once
// at insert; only the feedback columns may be set afterwards.
type ScanRecord struct {
	ID                 string
	CreatedAt          time.Time
	Status             string
	CardName           string
	CardNameEnglish    string
	SetName            string
	SetNameEnglish     string
	CardNumber         string
	OriginalNumber     string
	NumberVerified     bool
	VerificationReason string
	Confidence         int
	ModelRoute         string
	Escalated          bool
	Cached             bool
	CostUSD            float64
	PriceValue         float64
	PriceCurrency      string
	PriceSource        string
	PricingReason      string
	FeedbackVerdict    string
	FeedbackLabel      string
	FeedbackAt         *time.Time
}

const scanRecordColumns = `id, created_at, status,
	card_name, card_name_english, set_name, set_name_english,
	card_number, original_number, number_verified, verification_reason,
	confidence, model_route, escalated, cached, cost_usd,
	price_value, price_currency, price_source, pricing_reason,
	feedback_verdict, feedback_label, feedback_at`

// InsertScanRecord appends a record. The record's CreatedAt is set if zero.
func (s *Store) InsertScanRecord(ctx context.Context, record *ScanRecord) error {
	if record.ID == "" {
		return services.Wrap(services.ErrValidation, "record", "insert scan record", "missing id", nil)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scan_records (`+scanRecordColumns+`) VALUES
		(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.CreatedAt.UTC().Format(time.RFC3339Nano),
		record.Status,
		record.CardName,
		record.CardNameEnglish,
		record.SetName,
		record.SetNameEnglish,
		record.CardNumber,
		record.OriginalNumber,
		boolToInt(record.NumberVerified),
		record.VerificationReason,
		record.Confidence,
		record.ModelRoute,
		boolToInt(record.Escalated),
		boolToInt(record.Cached),
		record.CostUSD,
		record.PriceValue,
		record.PriceCurrency,
		record.PriceSource,
		record.PricingReason,
		record.FeedbackVerdict,
		record.FeedbackLabel,
		nullableTime(record.FeedbackAt),
	)
	if err != nil {
		return fmt.Errorf("insert scan record: %w", err)
	}
	return nil
}

// AnnotateFeedback sets the feedback columns of an existing record. The
// original outcome columns are never touched.
func (s *Store) AnnotateFeedback(ctx context.Context, id, verdict, label string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scan_records SET feedback_verdict = ?, feedback_label = ?, feedback_at = ? WHERE id = ?`,
		verdict, label, at.UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("annotate feedback: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("annotate feedback: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "record", "annotate feedback", id, nil)
	}
	return nil
}

// GetScanRecord loads one record by id.
func (s *Store) GetScanRecord(ctx context.Context, id string) (*ScanRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scanRecordColumns+` FROM scan_records WHERE id = ?`, id)
	record, err := scanRecordFromRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "record", "get scan record", id, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get scan record: %w", err)
	}
	return record, nil
}

// ListScanRecords returns the most recent records, newest first.
func (s *Store) ListScanRecords(ctx context.Context, limit int) ([]ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scanRecordColumns+` FROM scan_records ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list scan records: %w", err)
	}
	defer rows.Close()

	var records []ScanRecord
	for rows.Next() {
		record, err := scanRecordFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// LatestVerifiedRecord returns the newest record whose catalog number was
// verified, or ErrNotFound when no such record exists.
func (s *Store) LatestVerifiedRecord(ctx context.Context) (*ScanRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scanRecordColumns+` FROM scan_records
		 WHERE number_verified = 1 ORDER BY created_at DESC LIMIT 1`)
	record, err := scanRecordFromRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "record", "latest verified record", "", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("latest verified record: %w", err)
	}
	return record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecordFromRow(row rowScanner) (*ScanRecord, error) {
	var (
		record            ScanRecord
		createdAt         string
		verified          int
		escalated, cached int
		feedbackAt        sql.NullString
	)
	err := row.Scan(
		&record.ID,
		&createdAt,
		&record.Status,
		&record.CardName,
		&record.CardNameEnglish,
		&record.SetName,
		&record.SetNameEnglish,
		&record.CardNumber,
		&record.OriginalNumber,
		&verified,
		&record.VerificationReason,
		&record.Confidence,
		&record.ModelRoute,
		&escalated,
		&cached,
		&record.CostUSD,
		&record.PriceValue,
		&record.PriceCurrency,
		&record.PriceSource,
		&record.PricingReason,
		&record.FeedbackVerdict,
		&record.FeedbackLabel,
		&feedbackAt,
	)
	if err != nil {
		return nil, err
	}
	record.NumberVerified = verified != 0
	record.Escalated = escalated != 0
	record.Cached = cached != 0
	if ts, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
		record.CreatedAt = ts
	}
	if feedbackAt.Valid && feedbackAt.String != "" {
		if ts, parseErr := time.Parse(time.RFC3339Nano, feedbackAt.String); parseErr == nil {
			record.FeedbackAt = &ts
		}
	}
	return &record, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
