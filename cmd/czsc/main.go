package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"czsc/internal/config"
	"czsc/internal/config/writer"
	"czsc/internal/czsc"
	"czsc/internal/logger"
	"czsc/internal/market"
	"czsc/internal/report"
	"czsc/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	inputs      string
	symbol      string
	freq        string
	source      string
	format      string
	signalType  string
	limit       int
	importOnly  bool
	writeConfig string
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("czsc", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "配置文件（.toml/.yaml）")
	fs.StringVar(&opts.inputs, "input", "", "逗号分隔的 CSV 文件")
	fs.StringVar(&opts.symbol, "symbol", "", "标的代码；sqlite 数据源可用逗号分隔多个")
	fs.StringVar(&opts.freq, "freq", "", "K 线周期标签，例如 D、60m")
	fs.StringVar(&opts.source, "source", "", "数据源: csv | sqlite")
	fs.StringVar(&opts.format, "format", "", "输出格式: table | json | csv")
	fs.StringVar(&opts.signalType, "signals", "", "信号类别: all | bs | divergence")
	fs.IntVar(&opts.limit, "limit", 0, "只分析最近 N 根 K 线，0 表示全部")
	fs.BoolVar(&opts.importOnly, "import", false, "只把 CSV 导入 sqlite，不做分析")
	fs.StringVar(&opts.writeConfig, "write-config", "", "把生效配置写入该路径后退出")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

// apply 用命令行参数覆盖配置文件中的值。
func (o options) apply(cfg *config.Config) {
	if o.inputs != "" {
		cfg.Data.Inputs = splitList(o.inputs)
	}
	if o.symbol != "" {
		cfg.Data.Symbol = o.symbol
	}
	if o.freq != "" {
		cfg.Data.Freq = o.freq
	}
	if o.source != "" {
		cfg.Data.Source = strings.ToLower(o.source)
	}
	if o.limit != 0 {
		cfg.Data.Limit = o.limit
	}
	if o.format != "" {
		cfg.Report.Format = strings.ToLower(o.format)
	}
	if o.signalType != "" {
		cfg.Report.SignalType = strings.ToLower(o.signalType)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	opts.apply(cfg)
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	if opts.writeConfig != "" {
		if err := writer.NewConfigWriter(opts.writeConfig).Write(cfg); err != nil {
			return err
		}
		logger.Infof("配置已写入 %s", opts.writeConfig)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置不合法: %w", err)
	}
	if opts.importOnly {
		return importCSV(ctx, cfg)
	}
	return analyze(ctx, cfg, stdout)
}

// job 是一个待分析的标的。
type job struct {
	symbol string
	source market.Source
}

func analyze(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	jobs, closeFn, err := buildJobs(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	outputs := make([]bytes.Buffer, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			return analyzeOne(gctx, cfg, j, &outputs[i])
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// 按输入顺序输出
	for i := range outputs {
		if _, err := outputs[i].WriteTo(stdout); err != nil {
			return err
		}
	}
	return nil
}

func analyzeOne(ctx context.Context, cfg *config.Config, j job, out io.Writer) error {
	bars, err := j.source.Load(ctx, j.symbol, cfg.Data.Freq)
	if err != nil {
		return fmt.Errorf("加载 %s 失败: %w", j.source.Name(), err)
	}
	engine, err := czsc.NewEngine(cfg.Analysis.EngineConfig(), j.symbol)
	if err != nil {
		return err
	}
	n, err := engine.Replay(bars)
	if err != nil {
		return fmt.Errorf("%s 第 %d 根 K 线写入失败: %w", j.source.Name(), n+1, err)
	}
	snap := engine.Snapshot()
	logger.Infof("%s: %d 根 K 线, %d 个分型, %d 笔, %d 段", j.symbol, n, len(snap.Fractals), len(snap.Strokes), len(snap.Segments))
	return report.Render(out, snap, cfg.Data.Freq, cfg.Report)
}

func buildJobs(cfg *config.Config) ([]job, func(), error) {
	switch cfg.Data.Source {
	case config.SourceSQLite:
		db, err := store.NewSQLiteBarStore(cfg.Data.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		src := store.Source{Store: db, Label: "sqlite:" + cfg.Data.SQLitePath, Limit: cfg.Data.Limit}
		var jobs []job
		for _, sym := range splitList(cfg.Data.Symbol) {
			jobs = append(jobs, job{symbol: sym, source: src})
		}
		return jobs, func() {
			if err := db.Close(); err != nil {
				logger.Warnf("关闭 sqlite 失败: %v", err)
			}
		}, nil
	default:
		jobs := make([]job, 0, len(cfg.Data.Inputs))
		for _, path := range cfg.Data.Inputs {
			src := store.NewCachedSource(market.NewCSVSource(path), cfg.Data.Limit)
			jobs = append(jobs, job{symbol: symbolFor(path, cfg), source: src})
		}
		return jobs, func() {}, nil
	}
}

// importCSV 把 Inputs 中的 CSV 写入 sqlite，同一时间戳的 K 线会被覆盖。
func importCSV(ctx context.Context, cfg *config.Config) error {
	if len(cfg.Data.Inputs) == 0 {
		return errors.New("导入需要至少一个 -input")
	}
	db, err := store.NewSQLiteBarStore(cfg.Data.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()
	for _, path := range cfg.Data.Inputs {
		symbol := symbolFor(path, cfg)
		bars, err := market.NewCSVSource(path).Load(ctx, symbol, cfg.Data.Freq)
		if err != nil {
			return err
		}
		if err := db.Put(ctx, symbol, cfg.Data.Freq, bars); err != nil {
			return fmt.Errorf("导入 %s 失败: %w", path, err)
		}
		logger.Infof("已导入 %s: %s@%s %d 根 K 线", path, symbol, cfg.Data.Freq, len(bars))
	}
	return nil
}

// symbolFor 单个输入时优先使用配置的 symbol，否则取文件名。
func symbolFor(path string, cfg *config.Config) string {
	if sym := strings.TrimSpace(cfg.Data.Symbol); sym != "" && len(cfg.Data.Inputs) == 1 {
		return sym
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
