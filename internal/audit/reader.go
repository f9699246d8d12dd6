package audit

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// Reader provides read access to the ClickHouse audit_log table.
type Reader struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewReader opens a ClickHouse connection for audit queries.
func NewReader(dsn string, logger *zap.Logger) (*Reader, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}

	return &Reader{conn: conn, logger: logger}, nil
}

// Close closes the ClickHouse connection.
func (r *Reader) Close() error {
	return r.conn.Close()
}

// ListEntriesParams holds filters and pagination for audit listing.
type ListEntriesParams struct {
	Outcome   *string
	Actor     *string
	Action    *string
	StartTime *time.Time
	EndTime   *time.Time
	Page      int
	PageSize  int
}

// ListEntries returns paginated, filtered audit entries (newest first) and
// the total count matching the filters.
func (r *Reader) ListEntries(ctx context.Context, params ListEntriesParams) ([]Entry, int, error) {
	conditions := []string{"1 = 1"}
	var args []any

	if params.Outcome != nil {
		conditions = append(conditions, "outcome = @outcome")
		args = append(args, clickhouse.Named("outcome", *params.Outcome))
	}
	if params.Actor != nil {
		conditions = append(conditions, "actor = @actor")
		args = append(args, clickhouse.Named("actor", *params.Actor))
	}
	if params.Action != nil {
		conditions = append(conditions, "action = @action")
		args = append(args, clickhouse.Named("action", *params.Action))
	}
	if params.StartTime != nil {
		conditions = append(conditions, "timestamp >= @start_time")
		args = append(args, clickhouse.Named("start_time", *params.StartTime))
	}
	if params.EndTime != nil {
		conditions = append(conditions, "timestamp <= @end_time")
		args = append(args, clickhouse.Named("end_time", *params.EndTime))
	}

	where := strings.Join(conditions, " AND ")
	offset := (params.Page - 1) * params.PageSize

	var total uint64
	countQuery := fmt.Sprintf("SELECT count() FROM audit_log WHERE %s", where)
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListEntries count: %w", err)
	}

	dataQuery := fmt.Sprintf(
		"SELECT request_id, actor, action, target_type, target_id, outcome, timestamp, metadata "+
			"FROM audit_log WHERE %s "+
			"ORDER BY timestamp DESC "+
			"LIMIT @limit OFFSET @offset",
		where,
	)
	args = append(args,
		clickhouse.Named("limit", uint32(params.PageSize)),
		clickhouse.Named("offset", uint32(offset)),
	)

	rows, err := r.conn.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListEntries query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.RequestID, &e.Actor, &e.Action, &e.TargetType, &e.TargetID,
			&e.Outcome, &e.Timestamp, &e.Metadata,
		); err != nil {
			return nil, 0, fmt.Errorf("ListEntries scan: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, int(total), rows.Err()
}

// SummaryStats holds aggregate outcome counts over a time range.
type SummaryStats struct {
	Total     int `json:"total"`
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
	Denials   int `json:"denials"`
}

// Summary returns outcome counts for entries newer than the given start time.
func (r *Reader) Summary(ctx context.Context, since time.Time) (*SummaryStats, error) {
	var total, successes, failures, denials uint64
	err := r.conn.QueryRow(ctx,
		"SELECT count() as total, "+
			"countIf(outcome = 'success') as successes, "+
			"countIf(outcome = 'failure') as failures, "+
			"countIf(outcome = 'denied') as denials "+
			"FROM audit_log "+
			"WHERE timestamp >= @since",
		clickhouse.Named("since", since),
	).Scan(&total, &successes, &failures, &denials)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}

	return &SummaryStats{
		Total:     int(total),
		Successes: int(successes),
		Failures:  int(failures),
		Denials:   int(denials),
	}, nil
}
