package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes CSV files under a base directory.
type CSVWriter struct {
	baseDir string
	logger  *slog.Logger
}

func NewCSVWriter(baseDir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{baseDir: baseDir, logger: logger}
}

// WriteOptions describes one CSV document.
type WriteOptions struct {
	Headers []string
	Records [][]string
	// BOMPrefix makes Excel open the file as UTF-8.
	BOMPrefix bool
	// Atomic writes a sibling temp file and renames it over the target, so
	// readers never see a half-written master.
	Atomic bool
}

// WriteCSV replaces filePath, relative to the base directory unless
// absolute, creating parent directories.
func (w *CSVWriter) WriteCSV(filePath string, opts WriteOptions) error {
	path := filePath
	if !filepath.IsAbs(path) && w.baseDir != "" {
		path = filepath.Join(w.baseDir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	w.logger.Debug("Writing CSV",
		slog.String("path", path),
		slog.Int("records", len(opts.Records)),
		slog.Bool("atomic", opts.Atomic))

	if !opts.Atomic {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := Write(f, opts); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	err = Write(tmp, opts)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close temp file: %w", cerr)
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Write encodes opts to out. Atomic is ignored.
func Write(out io.Writer, opts WriteOptions) error {
	if opts.BOMPrefix {
		if _, err := out.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}
	cw := csv.NewWriter(out)
	if len(opts.Headers) > 0 {
		if err := cw.Write(opts.Headers); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	for i, rec := range opts.Records {
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
