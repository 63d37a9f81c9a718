package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"

	"github.com/rthallapally/AI-Research-Agent/pkg/research"
)

const localName = "local"

// LocalDocuments reads every PDF in a directory, one record per page.
type LocalDocuments struct {
	dir    string
	logger *slog.Logger
}

func NewLocalDocuments(dir string, logger *slog.Logger) *LocalDocuments {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalDocuments{dir: dir, logger: logger}
}

// Load returns the records of every readable PDF; a missing directory yields none.
func (d *LocalDocuments) Load(ctx context.Context) []research.EvidenceRecord {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			d.logger.Warn("Failed to read documents directory", "source", localName, "dir", d.dir, "error", err)
		}
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var records []research.EvidenceRecord
	for _, name := range names {
		path := filepath.Join(d.dir, name)
		pages, err := ExtractPDF(ctx, path)
		if err != nil {
			d.logger.Warn("Failed to load PDF", "source", localName, "path", path, "error", err)
			continue
		}
		records = append(records, pages...)
	}
	d.logger.Info("Loaded local documents", "dir", d.dir, "files", len(names), "pages", len(records))
	return records
}

// ExtractPDF loads a single PDF. Pages without text are skipped. A missing
// file is not an error.
func ExtractPDF(ctx context.Context, path string) ([]research.EvidenceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	docs, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	records := make([]research.EvidenceRecord, 0, len(docs))
	for _, doc := range docs {
		if strings.TrimSpace(doc.PageContent) == "" {
			continue
		}
		records = append(records, research.EvidenceRecord{Content: doc.PageContent, SourceID: path})
	}
	return records, nil
}
