package content

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/mmcdole/gofeed"
)

const userAgent = "healthtips/1.0"

// Importer turns RSS/Atom feed items into tips appended to a dataset file.
// It is an offline tool; the web server never writes the dataset.
type Importer struct {
	parser *gofeed.Parser
	client *http.Client
	path   string
}

// NewImporter creates an importer writing to the dataset at path.
func NewImporter(path string) *Importer {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &Importer{
		parser: parser,
		client: &http.Client{},
		path:   path,
	}
}

// ImportResult summarizes one import run.
type ImportResult struct {
	FeedTitle string `json:"feed_title"`
	Items     int    `json:"items"`
	Added     int    `json:"added"`
	Skipped   int    `json:"skipped"`
	FirstID   int    `json:"first_id,omitempty"`
}

// Fetch downloads and parses a feed.
func (im *Importer) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := im.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed %s: %w", url, err)
	}

	parsed, err := im.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", url, err)
	}
	return parsed, nil
}

// Import fetches url and appends its items under category.
func (im *Importer) Import(ctx context.Context, url, category string) (*ImportResult, error) {
	feed, err := im.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return im.Store(feed, category)
}

// Store appends feed items as tips. Items whose title (case-insensitive)
// already exists in the dataset, or earlier in the same feed, are skipped.
// New ids continue after the largest existing id.
func (im *Importer) Store(feed *gofeed.Feed, category string) (*ImportResult, error) {
	if err := ensureDataset(im.path); err != nil {
		return nil, err
	}
	lib, err := Load(im.path)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, lib.Len())
	for _, t := range lib.All() {
		seen[strings.ToLower(t.Title)] = true
	}

	result := &ImportResult{FeedTitle: feed.Title, Items: len(feed.Items)}
	next := lib.MaxID() + 1

	var rows [][]string
	for _, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		key := strings.ToLower(title)
		if title == "" || seen[key] {
			result.Skipped++
			continue
		}
		seen[key] = true

		body := item.Content
		if body == "" {
			body = item.Description
		}

		if result.FirstID == 0 {
			result.FirstID = next
		}
		rows = append(rows, lib.Record(Tip{
			ID:       next,
			Title:    title,
			Category: category,
			Body:     strings.TrimSpace(body),
		}))
		next++
	}

	if len(rows) == 0 {
		return result, nil
	}

	f, err := os.OpenFile(im.path, os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open content for append: %w", err)
	}
	if err := terminateLastLine(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to append tips: %w", err)
	}
	w := csv.NewWriter(f)
	w.WriteAll(rows)
	if err := w.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to append tips: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	result.Added = len(rows)
	return result, nil
}

// terminateLastLine writes a newline if the file is non-empty and does not
// already end with one, so appended records start on their own line.
func terminateLastLine(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = f.Write([]byte{'\n'})
	return err
}

// ensureDataset writes a header-only dataset when path is missing or empty.
func ensureDataset(path string) error {
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return nil
	} else if err != nil && !os.IsNotExist(err) {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create content: %w", err)
	}
	w := csv.NewWriter(f)
	w.Write(Columns)
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
