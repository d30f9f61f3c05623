package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pevans/lmdcrawl"
)

// ImportStats summarizes an import.
type ImportStats struct {
	Files    int `json:"files"`
	Articles int `json:"articles"`
	Comments int `json:"comments"`
	Skipped  int `json:"skipped"`
}

// ImportArticles loads every *.json file in dir into the articles table.
// Each file holds one article or an array of them. Articles without an id
// are counted as skipped.
func (s *Store) ImportArticles(dir string) (ImportStats, error) {
	var stats ImportStats

	err := eachJSONFile(dir, func(path string, data []byte) error {
		var articles []lmdcrawl.Article
		if err := decodeOneOrMany(data, &articles); err != nil {
			return fmt.Errorf("failed to decode %s: %w", path, err)
		}

		for _, a := range articles {
			inserted, err := s.SaveArticle(a)
			if errors.Is(err, ErrNoArticleID) {
				stats.Skipped++
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to import %s: %w", path, err)
			}
			if inserted {
				stats.Articles++
			}
		}
		stats.Files++
		return nil
	})

	return stats, err
}

// ImportComments loads every *.json file in dir into the comments table.
// Each file holds one comment thread or an array of them.
func (s *Store) ImportComments(dir string) (ImportStats, error) {
	var stats ImportStats

	err := eachJSONFile(dir, func(path string, data []byte) error {
		var threads []lmdcrawl.CommentThread
		if err := decodeOneOrMany(data, &threads); err != nil {
			return fmt.Errorf("failed to decode %s: %w", path, err)
		}

		for _, t := range threads {
			n, err := s.SaveComments(t)
			if errors.Is(err, ErrNoArticleID) {
				stats.Skipped++
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to import %s: %w", path, err)
			}
			stats.Comments += n
		}
		stats.Files++
		return nil
	})

	return stats, err
}

func eachJSONFile(dir string, fn func(path string, data []byte) error) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := fn(path, data); err != nil {
			return err
		}
	}
	return nil
}

// decodeOneOrMany decodes a JSON object or array of objects into out.
func decodeOneOrMany[T any](data []byte, out *[]T) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}

	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return err
	}
	*out = []T{one}
	return nil
}
