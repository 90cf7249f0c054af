package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"czsc/internal/czsc"
)

// Config 是命令行工具的全部配置。
type Config struct {
	Analysis    Analysis `toml:"analysis" yaml:"analysis"`
	Data        Data     `toml:"data" yaml:"data"`
	Report      Report   `toml:"report" yaml:"report"`
	Logging     Logging  `toml:"logging" yaml:"logging"`
	Concurrency int      `toml:"concurrency" yaml:"concurrency"`
}

// Analysis 对应引擎构造参数，构造后不可修改。
type Analysis struct {
	MinStrokeSpan     int    `toml:"min_stroke_span" yaml:"min_stroke_span"`
	MinSegmentStrokes int    `toml:"min_segment_strokes" yaml:"min_segment_strokes"`
	InclusionPolicy   string `toml:"inclusion_policy" yaml:"inclusion_policy"`
	StrengthMeasure   string `toml:"strength_measure" yaml:"strength_measure"`
}

type Data struct {
	// Source: csv 直接读取 Inputs；sqlite 从 SQLitePath 读取 Symbol 的数据
	Source     string   `toml:"source" yaml:"source"`
	Inputs     []string `toml:"inputs" yaml:"inputs"`
	Symbol     string   `toml:"symbol" yaml:"symbol"`
	Freq       string   `toml:"freq" yaml:"freq"`
	SQLitePath string   `toml:"sqlite_path" yaml:"sqlite_path"`
	// Limit>0 时只分析最近 Limit 根 K 线
	Limit int `toml:"limit" yaml:"limit"`
}

type Report struct {
	RecentFractals int    `toml:"recent_fractals" yaml:"recent_fractals"`
	RecentStrokes  int    `toml:"recent_strokes" yaml:"recent_strokes"`
	RecentSegments int    `toml:"recent_segments" yaml:"recent_segments"`
	SignalWindow   int    `toml:"signal_window" yaml:"signal_window"`
	SignalType     string `toml:"signal_type" yaml:"signal_type"`
	TrendWindow    int    `toml:"trend_window" yaml:"trend_window"`
	Format         string `toml:"format" yaml:"format"`
}

type Logging struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

const (
	SourceCSV    = "csv"
	SourceSQLite = "sqlite"

	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
)

// Default 返回全部字段填好默认值的配置。
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load 读取配置文件（按扩展名选择 TOML 或 YAML），再应用环境变量覆盖与默认值。
// path 为空时只使用环境变量与默认值。
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置 %s 失败: %w", path, err)
		}
		if err := Decode(data, filepath.Ext(path), cfg); err != nil {
			return nil, fmt.Errorf("解析配置 %s 失败: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.ApplyDefaults()
	return cfg, nil
}

func isYAML(ext string) bool {
	ext = strings.ToLower(ext)
	return ext == ".yaml" || ext == ".yml"
}

// Decode 按扩展名解码；非 .yaml/.yml 一律视为 TOML。
func Decode(data []byte, ext string, cfg *Config) error {
	if isYAML(ext) {
		return yaml.Unmarshal(data, cfg)
	}
	return toml.Unmarshal(data, cfg)
}

// Encode 按扩展名编码。
func Encode(cfg *Config, ext string) ([]byte, error) {
	if isYAML(ext) {
		return yaml.Marshal(cfg)
	}
	return toml.Marshal(cfg)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CZSC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CZSC_SQLITE_PATH"); v != "" {
		c.Data.SQLitePath = v
	}
	if v := os.Getenv("CZSC_FORMAT"); v != "" {
		c.Report.Format = v
	}
}

// ApplyDefaults 为零值字段填充默认值。
func (c *Config) ApplyDefaults() {
	def := czsc.DefaultConfig()
	if c.Analysis.MinStrokeSpan == 0 {
		c.Analysis.MinStrokeSpan = def.MinStrokeSpan
	}
	if c.Analysis.MinSegmentStrokes == 0 {
		c.Analysis.MinSegmentStrokes = def.MinSegmentStrokes
	}
	if c.Analysis.InclusionPolicy == "" {
		c.Analysis.InclusionPolicy = string(def.Inclusion)
	}
	if c.Analysis.StrengthMeasure == "" {
		c.Analysis.StrengthMeasure = string(def.Strength)
	}
	if c.Data.Source == "" {
		c.Data.Source = SourceCSV
	}
	if c.Data.Freq == "" {
		c.Data.Freq = "D"
	}
	if c.Data.SQLitePath == "" {
		c.Data.SQLitePath = "data/czsc.db"
	}
	if c.Report.RecentFractals == 0 {
		c.Report.RecentFractals = 5
	}
	if c.Report.RecentStrokes == 0 {
		c.Report.RecentStrokes = 5
	}
	if c.Report.RecentSegments == 0 {
		c.Report.RecentSegments = 3
	}
	if c.Report.SignalType == "" {
		c.Report.SignalType = string(czsc.CategoryAll)
	}
	if c.Report.TrendWindow == 0 {
		c.Report.TrendWindow = 5
	}
	if c.Report.Format == "" {
		c.Report.Format = FormatTable
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
}

// EngineConfig 转换为引擎配置。
func (a Analysis) EngineConfig() czsc.Config {
	return czsc.Config{
		MinStrokeSpan:     a.MinStrokeSpan,
		MinSegmentStrokes: a.MinSegmentStrokes,
		Inclusion:         czsc.InclusionPolicy(strings.ToLower(strings.TrimSpace(a.InclusionPolicy))),
		Strength:          czsc.StrengthMeasure(strings.ToLower(strings.TrimSpace(a.StrengthMeasure))),
	}
}

// Validate 返回所有不合法字段的错误。
func (c *Config) Validate() error {
	var errs []error
	if err := c.Analysis.EngineConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("analysis: %w", err))
	}
	switch c.Data.Source {
	case SourceCSV:
		if len(c.Data.Inputs) == 0 {
			errs = append(errs, errors.New("data.inputs 不能为空（source=csv）"))
		}
	case SourceSQLite:
		if strings.TrimSpace(c.Data.Symbol) == "" {
			errs = append(errs, errors.New("data.symbol 不能为空（source=sqlite）"))
		}
		if strings.TrimSpace(c.Data.SQLitePath) == "" {
			errs = append(errs, errors.New("data.sqlite_path 不能为空（source=sqlite）"))
		}
	default:
		errs = append(errs, fmt.Errorf("data.source 不支持: %q", c.Data.Source))
	}
	if strings.TrimSpace(c.Data.Freq) == "" {
		errs = append(errs, errors.New("data.freq 不能为空"))
	}
	if c.Data.Limit < 0 {
		errs = append(errs, fmt.Errorf("data.limit 不能为负，当前 %d", c.Data.Limit))
	}
	switch c.Report.Format {
	case FormatTable, FormatJSON, FormatCSV:
	default:
		errs = append(errs, fmt.Errorf("report.format 不支持: %q", c.Report.Format))
	}
	if !czsc.SignalCategory(c.Report.SignalType).Valid() {
		errs = append(errs, fmt.Errorf("report.signal_type 不支持: %q", c.Report.SignalType))
	}
	if c.Report.RecentFractals < 0 || c.Report.RecentStrokes < 0 || c.Report.RecentSegments < 0 || c.Report.SignalWindow < 0 {
		errs = append(errs, errors.New("report 窗口参数不能为负"))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency 必须 >= 1，当前 %d", c.Concurrency))
	}
	return errors.Join(errs...)
}
