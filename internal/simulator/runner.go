package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Runner 按固定间隔生成读数并 POST 到 /api/ingest
type Runner struct {
	httpClient *resty.Client
	baseURL    string
	cfg        GeneratorConfig
	rng        *rand.Rand
	logger     *zap.Logger
}

func NewRunner(baseURL string, timeout time.Duration, cfg GeneratorConfig, logger *zap.Logger) *Runner {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Runner{
		httpClient: client,
		baseURL:    baseURL,
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:     logger,
	}
}

// Run 每个 tick 发送一条，发送失败只记录日志；ctx 取消时返回
func (r *Runner) Run(ctx context.Context, tick time.Duration) error {
	r.logger.Info("Simulator started",
		zap.String("mode", string(r.cfg.Mode)),
		zap.String("api", r.baseURL),
		zap.Duration("tick", tick),
	)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	state := NewGeneratorState()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			var sample Sample
			state, sample = Tick(state, r.cfg, r.rng)
			if err := r.Send(ctx, sample); err != nil {
				r.logger.Warn("Failed to send sample", zap.Error(err))
				continue
			}
			r.logger.Debug("Sample sent",
				zap.String("process", string(sample.Process)),
				zap.Float64("weight", sample.Weight),
			)
		}
	}
}

// Send 发送一条读数，非 2xx 视为错误
func (r *Runner) Send(ctx context.Context, s Sample) error {
	resp, err := r.httpClient.R().
		SetContext(ctx).
		SetBody(s).
		Post("/api/ingest")
	if err != nil {
		return fmt.Errorf("failed to post sample: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("ingest rejected sample: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
