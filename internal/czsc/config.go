package czsc

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidBar: high<low、价格非正、成交量为负或 symbol 不一致。
	ErrInvalidBar = errors.New("invalid bar")
	// ErrOutOfOrderBar: 时间或 ID 不大于上一根已接收的 K 线。
	ErrOutOfOrderBar = errors.New("out of order bar")
	// ErrStaleVersion: 查询绑定的版本已被后续写入替代。
	ErrStaleVersion = errors.New("stale version")
	// ErrForeignVersion: 版本令牌来自另一个引擎实例。
	ErrForeignVersion = errors.New("version belongs to another engine")
	ErrInvalidConfig  = errors.New("invalid config")
)

// InclusionPolicy 决定没有既有趋势时（前两根 K 线）的包含合并方向。
type InclusionPolicy string

const (
	// InclusionNeutral 先比较 high，再比较 low，完全相同视为向上。
	InclusionNeutral InclusionPolicy = "neutral"
	InclusionUp      InclusionPolicy = "up"
	InclusionDown    InclusionPolicy = "down"
)

// StrengthMeasure 决定背驰比较所用的力度指标。
type StrengthMeasure string

const (
	// StrengthSlope = 幅度 / 经过的原始 K 线数量
	StrengthSlope StrengthMeasure = "slope"
	// StrengthMACDArea = 区间内同向 MACD 柱面积
	StrengthMACDArea StrengthMeasure = "macd_area"
)

// Config 在构造引擎时固定，之后不可修改。
type Config struct {
	// MinStrokeSpan 是一笔起止分型之间至少需要的独立 MergedBar 数量
	MinStrokeSpan     int
	MinSegmentStrokes int
	Inclusion         InclusionPolicy
	Strength          StrengthMeasure
}

func DefaultConfig() Config {
	return Config{
		MinStrokeSpan:     4,
		MinSegmentStrokes: 3,
		Inclusion:         InclusionNeutral,
		Strength:          StrengthSlope,
	}
}

// normalize 为零值字段填充默认值。
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.MinStrokeSpan == 0 {
		c.MinStrokeSpan = def.MinStrokeSpan
	}
	if c.MinSegmentStrokes == 0 {
		c.MinSegmentStrokes = def.MinSegmentStrokes
	}
	if strings.TrimSpace(string(c.Inclusion)) == "" {
		c.Inclusion = def.Inclusion
	}
	if strings.TrimSpace(string(c.Strength)) == "" {
		c.Strength = def.Strength
	}
	return c
}

func (c Config) Validate() error {
	if c.MinStrokeSpan < 1 {
		return fmt.Errorf("%w: min stroke span must be >= 1, got %d", ErrInvalidConfig, c.MinStrokeSpan)
	}
	if c.MinSegmentStrokes < 3 {
		return fmt.Errorf("%w: min segment strokes must be >= 3, got %d", ErrInvalidConfig, c.MinSegmentStrokes)
	}
	switch c.Inclusion {
	case InclusionNeutral, InclusionUp, InclusionDown:
	default:
		return fmt.Errorf("%w: unknown inclusion policy %q", ErrInvalidConfig, c.Inclusion)
	}
	switch c.Strength {
	case StrengthSlope, StrengthMACDArea:
	default:
		return fmt.Errorf("%w: unknown strength measure %q", ErrInvalidConfig, c.Strength)
	}
	return nil
}
