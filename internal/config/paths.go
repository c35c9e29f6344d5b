package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved file system locations used by the application.
type Paths struct {
	RootDir       string
	DataDir       string
	LogsDir       string
	MasterFile    string
	CacheFile     string
	MoleculesFile string
	TeamDirs      map[string]string
}

// GetPaths resolves cfg against its root directory. An empty root means the
// directory containing the executable.
func GetPaths(cfg *Config) (*Paths, error) {
	root := cfg.Paths.RootDir
	if root == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable path: %w", err)
		}
		exe, err = filepath.EvalSymlinks(exe)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
		}
		root = filepath.Dir(exe)
	}
	return NewPaths(root, cfg.Paths, cfg.Ingest.Teams), nil
}

// NewPaths resolves pc relative to root.
func NewPaths(root string, pc PathsConfig, teams []string) *Paths {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}

	p := &Paths{
		RootDir:       root,
		DataDir:       resolve(pc.DataDir),
		LogsDir:       resolve(pc.LogsDir),
		MasterFile:    resolve(pc.MasterFile),
		CacheFile:     resolve(pc.CacheFile),
		MoleculesFile: resolve(pc.MoleculesFile),
		TeamDirs:      make(map[string]string, len(teams)),
	}
	for _, t := range teams {
		p.TeamDirs[t] = filepath.Join(p.DataDir, t)
	}
	return p
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	dirs := []string{p.DataDir, p.LogsDir, filepath.Dir(p.MasterFile), filepath.Dir(p.CacheFile)}
	for _, d := range p.TeamDirs {
		dirs = append(dirs, d)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// GetDataPath returns a path inside the data directory
func (p *Paths) GetDataPath(filename string) string {
	return filepath.Join(p.DataDir, filename)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs the resolved paths at info level.
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	teams := make([]any, 0, len(p.TeamDirs))
	for name, dir := range p.TeamDirs {
		teams = append(teams, slog.String(name, dir))
	}
	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("root", p.RootDir),
			slog.String("data", p.DataDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("files",
			slog.String("master", p.MasterFile),
			slog.String("cache", p.CacheFile),
			slog.String("molecules", p.MoleculesFile),
		),
		slog.Group("teams", teams...))
}
