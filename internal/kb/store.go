// Package kb reads the on-disk knowledge base: a directory of markdown
// and text files, typically produced by the site scraper. Scraped files
// carry a front-matter block with the source URL.
package kb

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/empire-labs/chad/internal/domain"
)

// Store loads documents from a knowledge-base directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load walks the kb directory and returns every .md and .txt file as a
// Document. Files that cannot be read are skipped; an empty directory
// yields an empty slice, not an error.
func (s *Store) Load() ([]domain.Document, error) {
	var docs []domain.Document

	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A missing kb dir means nothing to ingest yet.
			if path == s.dir && os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}

		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}

		rel, relErr := filepath.Rel(s.dir, path)
		if relErr != nil {
			rel = path
		}

		source, body := splitFrontMatter(string(raw))
		if source == "" {
			source = rel
		}
		body = strings.TrimSpace(body)
		if body == "" {
			return nil
		}

		docs = append(docs, domain.Document{
			ID:     rel,
			Source: source,
			Text:   body,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return docs, nil
}

// splitFrontMatter extracts the scraper's front-matter block. It
// returns the source field (if present) and the remaining body. Input
// without a leading "---" line is returned untouched.
func splitFrontMatter(raw string) (source, body string) {
	if !strings.HasPrefix(raw, "---\n") && !strings.HasPrefix(raw, "---\r\n") {
		return "", raw
	}

	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		lines   []string
		inFront bool
		closed  bool
	)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case !inFront && !closed && line == "---":
			inFront = true
		case inFront && line == "---":
			inFront = false
			closed = true
		case inFront:
			if key, value, ok := strings.Cut(line, ":"); ok && strings.TrimSpace(key) == "source" {
				source = strings.TrimSpace(value)
			}
		default:
			lines = append(lines, line)
		}
	}

	if !closed {
		// Unterminated front matter; treat the whole file as body.
		return "", raw
	}
	return source, strings.Join(lines, "\n")
}
