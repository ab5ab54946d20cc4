package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/VaTka/wakame/internal/domain"
)

const readingsSchema = `
CREATE TABLE IF NOT EXISTS scale_readings (
	id       BIGSERIAL PRIMARY KEY,
	ts       TIMESTAMPTZ NOT NULL,
	raw      TEXT,
	weight   DOUBLE PRECISION,
	unit     TEXT NOT NULL DEFAULT 'g',
	status   TEXT NOT NULL DEFAULT '',
	source   TEXT NOT NULL DEFAULT 'serial',
	process  TEXT NOT NULL,
	stable   BOOLEAN,
	is_error BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_scale_readings_process_ts ON scale_readings (process, ts);
`

const readingColumns = `id, ts, raw, weight, unit, status, source, process, stable, is_error`

// PostgresReadingLog 基于 scale_readings 表的读数日志
type PostgresReadingLog struct {
	db *sql.DB
}

// NewPostgresReadingLog 创建 PostgreSQL 读数日志
func NewPostgresReadingLog(db *sql.DB) *PostgresReadingLog {
	return &PostgresReadingLog{db: db}
}

// 确保实现了接口
var _ ReadingLog = (*PostgresReadingLog)(nil)

// EnsureSchema 建表（幂等）
func (r *PostgresReadingLog) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, readingsSchema); err != nil {
		return fmt.Errorf("failed to ensure scale_readings schema: %w", err)
	}
	return nil
}

func (r *PostgresReadingLog) Append(ctx context.Context, reading domain.Reading) (domain.Reading, error) {
	query := `
		INSERT INTO scale_readings (ts, raw, weight, unit, status, source, process, stable, is_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		reading.Timestamp.UTC(),
		nullString(reading.Raw),
		nullFloat(reading.Weight),
		reading.Unit,
		reading.Status,
		reading.Source,
		string(reading.Process),
		nullBool(reading.Stable),
		reading.IsError,
	).Scan(&id)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("failed to insert reading: %w", err)
	}
	reading.ID = id
	return reading, nil
}

func (r *PostgresReadingLog) ListRecent(ctx context.Context, process domain.Process, limit int) ([]domain.Reading, error) {
	where, args := processFilter(process, nil)
	args = append(args, domain.ClampListLimit(limit))
	query := fmt.Sprintf(`SELECT %s FROM scale_readings%s ORDER BY id DESC LIMIT $%d`, readingColumns, where, len(args))
	return r.queryReadings(ctx, query, args...)
}

func (r *PostgresReadingLog) Latest(ctx context.Context, process domain.Process) (*domain.Reading, error) {
	where, args := processFilter(process, nil)
	query := fmt.Sprintf(`SELECT %s FROM scale_readings%s ORDER BY id DESC LIMIT 1`, readingColumns, where)

	reading, err := scanReading(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reading: %w", err)
	}
	return &reading, nil
}

func (r *PostgresReadingLog) ListRange(ctx context.Context, process domain.Process, from, to time.Time, afterID int64, limit int) ([]domain.Reading, error) {
	where, args := rangeFilter(process, from, to)
	args = append(args, afterID)
	where += fmt.Sprintf(" AND id > $%d", len(args))
	args = append(args, domain.ClampListLimit(limit))
	query := fmt.Sprintf(`SELECT %s FROM scale_readings%s ORDER BY id ASC LIMIT $%d`, readingColumns, where, len(args))
	return r.queryReadings(ctx, query, args...)
}

func (r *PostgresReadingLog) ListRangeNewest(ctx context.Context, process domain.Process, from, to time.Time, limit int) ([]domain.Reading, error) {
	where, args := rangeFilter(process, from, to)
	args = append(args, domain.ClampListLimit(limit))
	query := fmt.Sprintf(`SELECT %s FROM scale_readings%s ORDER BY id DESC LIMIT $%d`, readingColumns, where, len(args))
	return r.queryReadings(ctx, query, args...)
}

// Aggregate 在 SQL 中执行与 domain.Aggregate 相同的分桶：
// floor(epoch / step) * step 对齐，窗口两端闭区间，仅统计有效读数。
// 重量按 0.1 克整数求和，平均值由 domain.AvgTenths 计算，与本地聚合逐位一致
func (r *PostgresReadingLog) Aggregate(ctx context.Context, process domain.Process, now time.Time, windowMinutes, stepMinutes int) ([]domain.Bucket, error) {
	window := domain.NewWindow(now, windowMinutes)
	if stepMinutes < 1 {
		stepMinutes = 1
	}
	step := stepMinutes * 60

	args := []any{step, window.From, window.To}
	where, args := processFilter(process, args)
	if where == "" {
		where = " WHERE"
	} else {
		where += " AND"
	}
	query := `
		SELECT
			(FLOOR(EXTRACT(EPOCH FROM ts) / $1) * $1)::bigint AS bucket,
			SUM(ROUND(weight::numeric * 10))::bigint AS sum_tenths,
			MIN(weight) AS min_weight,
			MAX(weight) AS max_weight,
			COUNT(*) AS cnt
		FROM scale_readings` + where + ` ts >= $2 AND ts <= $3
			AND weight IS NOT NULL
			AND is_error = FALSE
		GROUP BY bucket
		ORDER BY bucket ASC
	`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate readings: %w", err)
	}
	defer rows.Close()

	buckets := []domain.Bucket{}
	for rows.Next() {
		var (
			start, sumTenths int64
			b                domain.Bucket
		)
		if err := rows.Scan(&start, &sumTenths, &b.MinWeight, &b.MaxWeight, &b.Count); err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		b.Start = time.Unix(start, 0).UTC()
		b.AvgWeight = domain.AvgTenths(sumTenths, b.Count)
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate buckets: %w", err)
	}
	return buckets, nil
}

func (r *PostgresReadingLog) queryReadings(ctx context.Context, query string, args ...any) ([]domain.Reading, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	readings := []domain.Reading{}
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}
	return readings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(s rowScanner) (domain.Reading, error) {
	var (
		reading domain.Reading
		raw     sql.NullString
		weight  sql.NullFloat64
		stable  sql.NullBool
		process string
	)
	err := s.Scan(&reading.ID, &reading.Timestamp, &raw, &weight,
		&reading.Unit, &reading.Status, &reading.Source, &process, &stable, &reading.IsError)
	if err != nil {
		return domain.Reading{}, err
	}
	reading.Timestamp = reading.Timestamp.UTC()
	reading.Process = domain.Process(process)
	if raw.Valid {
		reading.Raw = &raw.String
	}
	if weight.Valid {
		reading.Weight = &weight.Float64
	}
	if stable.Valid {
		reading.Stable = &stable.Bool
	}
	return reading, nil
}

// rangeFilter 时间窗口 [$1, $2] 加可选的工序过滤
func rangeFilter(process domain.Process, from, to time.Time) (string, []any) {
	where, args := processFilter(process, []any{from.UTC(), to.UTC()})
	if where == "" {
		return " WHERE ts >= $1 AND ts <= $2", args
	}
	return where + " AND ts >= $1 AND ts <= $2", args
}

// processFilter 追加工序过滤条件，占位符序号接在已有参数之后
func processFilter(process domain.Process, args []any) (string, []any) {
	p := strings.TrimSpace(string(process))
	if p == "" {
		return "", args
	}
	args = append(args, p)
	return fmt.Sprintf(" WHERE process = $%d", len(args)), args
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
