package writer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"czsc/internal/config"
)

// ConfigWriter 负责读写配置文件（TOML/YAML，按扩展名）。
type ConfigWriter struct {
	path string
	mu   sync.RWMutex
	// keep 是保留的备份数量
	keep int
	now  func() time.Time
}

func NewConfigWriter(path string) *ConfigWriter {
	return &ConfigWriter{path: path, keep: 10, now: time.Now}
}

// Read 读取当前配置文件，不应用环境变量与默认值。
func (w *ConfigWriter) Read() (*config.Config, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("读取 %s 失败: %w", w.path, err)
	}
	var cfg config.Config
	if err := config.Decode(data, filepath.Ext(w.path), &cfg); err != nil {
		return nil, fmt.Errorf("解析 %s 失败: %w", w.path, err)
	}
	return &cfg, nil
}

// Write 先备份旧文件，再写临时文件并 rename 替换。
func (w *ConfigWriter) Write(cfg *config.Config) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.backup(); err != nil {
		return fmt.Errorf("备份失败: %w", err)
	}
	data, err := config.Encode(cfg, filepath.Ext(w.path))
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmpPath := w.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("替换配置文件失败: %w", err)
	}
	return nil
}

func (w *ConfigWriter) backupPrefix() string {
	base := filepath.Base(w.path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_"
}

// backup 把现有文件复制到同目录 backups/ 下。
func (w *ConfigWriter) backup() error {
	src, err := os.Open(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer src.Close()

	backupDir := filepath.Join(filepath.Dir(w.path), "backups")
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return err
	}
	name := w.backupPrefix() + w.now().Format("20060102_150405.000000000") + filepath.Ext(w.path)
	dst, err := os.Create(filepath.Join(backupDir, name))
	if err != nil {
		return err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	w.cleanOldBackups(backupDir)
	return nil
}

func (w *ConfigWriter) cleanOldBackups(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	prefix := w.backupPrefix()
	var backups []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), filepath.Ext(w.path)) {
			backups = append(backups, filepath.Join(dir, e.Name()))
		}
	}
	if len(backups) <= w.keep {
		return
	}
	sort.Strings(backups)
	for i := 0; i < len(backups)-w.keep; i++ {
		os.Remove(backups[i])
	}
}
