package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// ErrNoTransition is returned when a guarded status update matched no row,
// meaning the record is not in the expected state.
var ErrNoTransition = errors.New("seal record not in expected status")

// Store provides database operations for the relayer
type Store struct {
	db *bun.DB
}

// NewStore creates a store on an established bun connection
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSealRecord inserts a new record in status sealed. Returns false when
// a record for the seal hash already exists; the insert is the atomic
// admission check, so concurrent observers of the same deposit create
// exactly one row.
func (s *Store) CreateSealRecord(ctx context.Context, rec *SealRecord) (bool, error) {
	rec.Status = StatusSealed
	res, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (seal_hash) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to create seal record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetSealRecord retrieves a record by seal hash, nil when absent
func (s *Store) GetSealRecord(ctx context.Context, sealHash string) (*SealRecord, error) {
	rec := new(SealRecord)
	err := s.db.NewSelect().Model(rec).Where("seal_hash = ?", sealHash).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get seal record: %w", err)
	}
	return rec, nil
}

// ListSealRecords retrieves the most recent records
func (s *Store) ListSealRecords(ctx context.Context, limit int) ([]*SealRecord, error) {
	var recs []*SealRecord
	err := s.db.NewSelect().
		Model(&recs).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list seal records: %w", err)
	}
	return recs, nil
}

// GetResumable returns every record that still needs work, oldest first.
// Used on startup to re-admit workflows interrupted by a crash.
func (s *Store) GetResumable(ctx context.Context) ([]*SealRecord, error) {
	var recs []*SealRecord
	err := s.db.NewSelect().
		Model(&recs).
		Where("status NOT IN (?)", bun.In([]Status{StatusCompleted, StatusFailed})).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get resumable records: %w", err)
	}
	return recs, nil
}

// CountByStatus returns record counts grouped by status
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	var rows []struct {
		Status Status `bun:"status"`
		Count  int    `bun:"count"`
	}
	err := s.db.NewSelect().
		Model((*SealRecord)(nil)).
		ColumnExpr("status, COUNT(*) AS count").
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	counts := make(map[Status]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// UpdateStatus advances a record from one status to the next. The WHERE
// guard makes the transition atomic: a stale caller gets ErrNoTransition
// instead of overwriting newer state.
func (s *Store) UpdateStatus(ctx context.Context, sealHash string, from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal status transition %s -> %s", from, to)
	}
	res, err := s.db.NewUpdate().
		Model((*SealRecord)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now().UTC()).
		Where("seal_hash = ? AND status = ?", sealHash, from).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return requireOneRow(res)
}

// SetSignature records the signature produced for the seal hash and moves
// the record from signing to signed.
func (s *Store) SetSignature(ctx context.Context, sealHash, signature string) error {
	res, err := s.db.NewUpdate().
		Model((*SealRecord)(nil)).
		Set("signature = ?", signature).
		Set("status = ?", StatusSigned).
		Set("updated_at = ?", time.Now().UTC()).
		Where("seal_hash = ? AND status = ?", sealHash, StatusSigning).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set signature: %w", err)
	}
	return requireOneRow(res)
}

// SetDestinationAsset links the minted asset to the record and moves it to
// minted. The empty-address guard enforces set-at-most-once regardless of
// what the caller believes the current status is.
func (s *Store) SetDestinationAsset(ctx context.Context, sealHash, asset string) error {
	res, err := s.db.NewUpdate().
		Model((*SealRecord)(nil)).
		Set("destination_asset_address = ?", asset).
		Set("status = ?", StatusMinted).
		Set("updated_at = ?", time.Now().UTC()).
		Where("seal_hash = ?", sealHash).
		Where("destination_asset_address IS NULL OR destination_asset_address = ''").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set destination asset: %w", err)
	}
	return requireOneRow(res)
}

// MarkFailed moves a non-terminal record to failed, remembering the status
// it failed from and the error verbatim.
func (s *Store) MarkFailed(ctx context.Context, sealHash, errMsg string) error {
	res, err := s.db.NewUpdate().
		Model((*SealRecord)(nil)).
		Set("failed_from = status").
		Set("status = ?", StatusFailed).
		Set("error = ?", errMsg).
		Set("updated_at = ?", time.Now().UTC()).
		Where("seal_hash = ?", sealHash).
		Where("status NOT IN (?)", bun.In([]Status{StatusCompleted, StatusFailed})).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark failed: %w", err)
	}
	return requireOneRow(res)
}

// ResetForRetry moves a failed record back into the status that failed so
// the queue can re-run the interrupted stage.
func (s *Store) ResetForRetry(ctx context.Context, sealHash string) error {
	res, err := s.db.NewUpdate().
		Model((*SealRecord)(nil)).
		Set("status = failed_from").
		Set("error = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("seal_hash = ? AND status = ?", sealHash, StatusFailed).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset for retry: %w", err)
	}
	return requireOneRow(res)
}

// GetCursor retrieves the last processed event sequence for a chain.
// Returns -1 when no cursor has been persisted yet.
func (s *Store) GetCursor(ctx context.Context, chain string) (int64, error) {
	state := new(CursorState)
	err := s.db.NewSelect().Model(state).Where("chain = ?", chain).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get cursor: %w", err)
	}
	return state.LastSeq, nil
}

// SetCursor upserts the last processed event sequence for a chain
func (s *Store) SetCursor(ctx context.Context, chain string, seq int64) error {
	state := &CursorState{Chain: chain, LastSeq: seq, UpdatedAt: time.Now().UTC()}
	_, err := s.db.NewInsert().
		Model(state).
		On("CONFLICT (chain) DO UPDATE").
		Set("last_seq = EXCLUDED.last_seq").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set cursor: %w", err)
	}
	return nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoTransition
	}
	return nil
}
