package repository

import (
	"context"
	"time"

	"github.com/VaTka/wakame/internal/domain"
)

// ReadingLog 只追加的读数日志
// process 为空表示不过滤工序
type ReadingLog interface {
	// Append 写入一条读数并返回分配了 ID 的结果
	Append(ctx context.Context, r domain.Reading) (domain.Reading, error)

	// ListRecent 最近的读数，按 ID 倒序（最新在前）
	ListRecent(ctx context.Context, process domain.Process, limit int) ([]domain.Reading, error)

	// Latest 最新一条读数，不存在时返回 nil
	Latest(ctx context.Context, process domain.Process) (*domain.Reading, error)

	// ListRange [from, to] 内 ID 大于 afterID 的读数，按 ID 正序；以上一页最后的 ID 续读即可遍历整个窗口
	ListRange(ctx context.Context, process domain.Process, from, to time.Time, afterID int64, limit int) ([]domain.Reading, error)

	// ListRangeNewest [from, to] 内最新的 limit 条读数，按 ID 倒序
	ListRangeNewest(ctx context.Context, process domain.Process, from, to time.Time, limit int) ([]domain.Reading, error)

	// Aggregate 存储侧分桶聚合，规则与 domain.Aggregate 相同
	Aggregate(ctx context.Context, process domain.Process, now time.Time, windowMinutes, stepMinutes int) ([]domain.Bucket, error)
}
