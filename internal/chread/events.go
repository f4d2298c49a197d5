// Package chread provides read access to the ClickHouse decision_events
// table for the audit endpoints.
package chread

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

// Reader provides read access to the decision_events table.
type Reader struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewReader opens a ClickHouse connection for read queries.
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

// DecisionRow represents a single row from the decision_events table.
type DecisionRow struct {
	RequestID     string
	ClientID      string
	Timestamp     time.Time
	Role          string
	Phase         string
	ToolName      string
	ToolArguments string
	Allowed       uint8
	Stage         string
	Reason        string
	LatencyMs     float32
	Source        string
}

// ListDecisionsParams holds filters and pagination for decision listing.
type ListDecisionsParams struct {
	Role      *string
	Phase     *string
	ToolName  *string
	Allowed   *bool
	StartTime *time.Time
	EndTime   *time.Time
	Page      int
	PageSize  int
}

// ListDecisions returns paginated, filtered decision events and the total count.
func (r *Reader) ListDecisions(ctx context.Context, params ListDecisionsParams) ([]DecisionRow, int, error) {
	conditions := []string{"1 = 1"}
	args := []any{}

	if params.Role != nil {
		conditions = append(conditions, "role = @role")
		args = append(args, clickhouse.Named("role", *params.Role))
	}
	if params.Phase != nil {
		conditions = append(conditions, "phase = @phase")
		args = append(args, clickhouse.Named("phase", *params.Phase))
	}
	if params.ToolName != nil {
		conditions = append(conditions, "tool_name = @tool_name")
		args = append(args, clickhouse.Named("tool_name", *params.ToolName))
	}
	if params.Allowed != nil {
		var v uint8
		if *params.Allowed {
			v = 1
		}
		conditions = append(conditions, "allowed = @allowed")
		args = append(args, clickhouse.Named("allowed", v))
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
	countQuery := "SELECT count() FROM decision_events WHERE " + where
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListDecisions count: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT request_id, client_id, timestamp, role, phase,
		       tool_name, tool_arguments, allowed, stage, reason,
		       latency_ms, source
		FROM decision_events
		WHERE %s
		ORDER BY timestamp DESC
		LIMIT %d OFFSET %d`, where, params.PageSize, offset)

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListDecisions query: %w", err)
	}
	defer rows.Close()

	var out []DecisionRow
	for rows.Next() {
		var d DecisionRow
		if err := rows.Scan(
			&d.RequestID, &d.ClientID, &d.Timestamp, &d.Role, &d.Phase,
			&d.ToolName, &d.ToolArguments, &d.Allowed, &d.Stage, &d.Reason,
			&d.LatencyMs, &d.Source,
		); err != nil {
			return nil, 0, fmt.Errorf("ListDecisions scan: %w", err)
		}
		out = append(out, d)
	}

	return out, int(total), nil
}

// SummaryStats holds aggregate decision counts for a time window.
type SummaryStats struct {
	Total         int
	Allowed       int
	Denied        int
	DeniedByStage map[string]int
}

// Summary returns aggregate counts for decisions since the given time.
func (r *Reader) Summary(ctx context.Context, since time.Time) (*SummaryStats, error) {
	stats := &SummaryStats{DeniedByStage: make(map[string]int)}

	var total, allowed uint64
	err := r.conn.QueryRow(ctx, `
		SELECT count(), countIf(allowed = 1)
		FROM decision_events
		WHERE timestamp >= @since`,
		clickhouse.Named("since", since),
	).Scan(&total, &allowed)
	if err != nil {
		return nil, fmt.Errorf("Summary totals: %w", err)
	}
	stats.Total = int(total)
	stats.Allowed = int(allowed)
	stats.Denied = stats.Total - stats.Allowed

	rows, err := r.conn.Query(ctx, `
		SELECT stage, count()
		FROM decision_events
		WHERE timestamp >= @since AND allowed = 0
		GROUP BY stage
		ORDER BY count() DESC`,
		clickhouse.Named("since", since),
	)
	if err != nil {
		return nil, fmt.Errorf("Summary by stage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stage string
		var count uint64
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, fmt.Errorf("Summary scan: %w", err)
		}
		stats.DeniedByStage[stage] = int(count)
	}

	return stats, nil
}
