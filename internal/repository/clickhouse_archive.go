package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"SignalWatch/internal/domain/models"
	"SignalWatch/internal/domain/repository"
	"SignalWatch/pkg/util"
)

// ClickHouseArchive implements Archive for ClickHouse. Every observed
// signal revision is appended, so the table holds the full update
// history of each signal id for later accuracy review.
type ClickHouseArchive struct {
	db    *sql.DB
	table string
}

// NewClickHouseArchive creates a signal archive over an existing pool.
func NewClickHouseArchive(db *sql.DB, table string) repository.Archive {
	return &ClickHouseArchive{db: db, table: table}
}

const archiveColumns = "(observed_at, id, symbol, direction, entry_price, current_price, target_price, stop_loss, accuracy, confidence, market_phase, created_at, validation_count)"

func (a *ClickHouseArchive) StoreSignal(ctx context.Context, s *models.TradingSignal) error {
	q := fmt.Sprintf("INSERT INTO %s %s VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", a.table, archiveColumns)
	_, err := a.db.ExecContext(ctx, q, archiveArgs(s, time.Now())...)
	return err
}

func (a *ClickHouseArchive) StoreSignals(ctx context.Context, signals []models.TradingSignal) error {
	if len(signals) == 0 {
		return nil
	}

	// Multi-row VALUES to keep round-trips down; 2000 rows per batch.
	const chunkSize = 2000
	now := time.Now()
	for start := 0; start < len(signals); start += chunkSize {
		end := start + chunkSize
		if end > len(signals) {
			end = len(signals)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*13)
		for i := range signals[start:end] {
			s := &signals[start+i]
			if s.Symbol == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, archiveArgs(s, now)...)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s %s VALUES %s", a.table, archiveColumns, strings.Join(values, ","))
		if _, err := a.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func archiveArgs(s *models.TradingSignal, observedAt time.Time) []interface{} {
	createdAt := util.ParseTimeDefault(s.CreatedAt, observedAt)
	return []interface{}{
		observedAt,
		s.ID,
		s.Symbol,
		string(s.Direction),
		s.EntryPrice,
		s.CurrentPrice,
		s.TargetPrice,
		s.StopLoss,
		s.Accuracy,
		s.Confidence,
		s.MarketPhase,
		createdAt,
		s.ValidationCount,
	}
}

func (a *ClickHouseArchive) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *ClickHouseArchive) Close() error {
	return nil // pool is owned by pkg/clickhouse.Client
}

// Name implements middleware.Sink.
func (a *ClickHouseArchive) Name() string { return "archive" }

// Consume implements middleware.Sink: only signal-bearing envelopes are
// archived, everything else passes through untouched.
func (a *ClickHouseArchive) Consume(ctx context.Context, env *models.Envelope) error {
	switch env.Type {
	case models.TypeSignalUpdate:
		s, err := env.Signal()
		if err != nil {
			return nil // bad payload already logged upstream
		}
		return a.StoreSignal(ctx, s)
	case models.TypeSignalsUpdate:
		list, err := env.SignalList()
		if err != nil {
			return nil
		}
		return a.StoreSignals(ctx, list)
	default:
		return nil
	}
}
