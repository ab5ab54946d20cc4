package simulator

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/VaTka/wakame/internal/domain"
)

// Mode 生成哪个工序的读数
type Mode string

const (
	ModeBoth      Mode = "both" // 两个工序交替
	ModeMolding   Mode = "molding"
	ModePackaging Mode = "packaging"
)

// ParseMode 未知值返回 ErrInvalidInput
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeBoth, nil
	case ModeBoth, ModeMolding, ModePackaging:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown simulator mode %q", domain.ErrInvalidInput, s)
	}
}

// GeneratorConfig 正弦波振幅与噪声幅度（克）
type GeneratorConfig struct {
	Amp   float64
	Noise float64
	Mode  Mode
}

// GeneratorState 每次 Tick 之间传递的状态
type GeneratorState struct {
	TickIndex   int
	LastProcess domain.Process
}

// NewGeneratorState 初始状态；both 模式下第一条为 molding
func NewGeneratorState() GeneratorState {
	return GeneratorState{LastProcess: domain.ProcessPackaging}
}

// Sample 一条模拟读数
type Sample struct {
	Raw     string         `json:"raw"`
	Weight  float64        `json:"weight"`
	Unit    string         `json:"unit"`
	Status  string         `json:"status"`
	Process domain.Process `json:"process"`
	Source  string         `json:"source"`
}

// Tick 生成下一条读数：amp/2 + amp/2*sin(t/20) 叠加 ±noise 均匀噪声，保留 1 位小数
func Tick(state GeneratorState, cfg GeneratorConfig, rng *rand.Rand) (GeneratorState, Sample) {
	base := cfg.Amp/2 + cfg.Amp/2*math.Sin(float64(state.TickIndex)/20)
	noise := 0.0
	if cfg.Noise != 0 && rng != nil {
		noise = (rng.Float64() - 0.5) * 2 * cfg.Noise
	}
	weight := domain.Round1(base + noise)

	process := nextProcess(cfg.Mode, state.LastProcess)
	status := "S"
	if weight < 0 {
		status = "E"
	}

	next := GeneratorState{TickIndex: state.TickIndex + 1, LastProcess: process}
	return next, Sample{
		Raw:     fmt.Sprintf("%+.1f G %s", weight, status),
		Weight:  weight,
		Unit:    domain.DefaultUnit,
		Status:  status,
		Process: process,
		Source:  "simulator",
	}
}

func nextProcess(mode Mode, prev domain.Process) domain.Process {
	switch mode {
	case ModeMolding:
		return domain.ProcessMolding
	case ModePackaging:
		return domain.ProcessPackaging
	default:
		if prev == domain.ProcessMolding {
			return domain.ProcessPackaging
		}
		return domain.ProcessMolding
	}
}
