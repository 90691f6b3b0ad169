// Package content holds the read-only health tip dataset.
package content

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrMissingColumn is returned when the dataset header lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// Columns is the dataset header, in file order.
var Columns = []string{"id", "title", "category", "body"}

type Tip struct {
	ID       int
	Title    string
	Category string
	Body     string
}

// Library is an in-memory copy of the dataset. It is never mutated after
// Load, so it is safe to share between goroutines.
type Library struct {
	tips   []Tip
	byID   map[int]int
	header []string
}

// Load reads the dataset at path.
func Load(path string) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open content: %w", err)
	}
	defer f.Close()

	lib, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lib, nil
}

// Parse reads a dataset with a header row. Columns are located by name.
func Parse(r io.Reader) (*Library, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return NewLibrary(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, col := range Columns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, col)
		}
	}

	field := func(rec []string, col string) string {
		if i := index[col]; i < len(rec) {
			return rec[i]
		}
		return ""
	}

	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.TrimSpace(name)
	}

	var tips []Tip
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		id, err := strconv.Atoi(strings.TrimSpace(field(rec, "id")))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid id %q", line, field(rec, "id"))
		}
		tips = append(tips, Tip{
			ID:       id,
			Title:    field(rec, "title"),
			Category: field(rec, "category"),
			Body:     field(rec, "body"),
		})
	}
	lib := NewLibrary(tips)
	lib.header = columns
	return lib, nil
}

// NewLibrary wraps tips. When ids repeat, FindByID returns the first.
func NewLibrary(tips []Tip) *Library {
	lib := &Library{tips: tips, byID: make(map[int]int, len(tips))}
	for i, t := range tips {
		if _, dup := lib.byID[t.ID]; !dup {
			lib.byID[t.ID] = i
		}
	}
	return lib
}

// Header returns the dataset's column names in file order. A library that
// was not read from a file uses Columns.
func (l *Library) Header() []string {
	if len(l.header) == 0 {
		return Columns
	}
	return l.header
}

// Record lays t out in the column order of Header. Unknown columns are empty.
func (l *Library) Record(t Tip) []string {
	header := l.Header()
	rec := make([]string, len(header))
	for i, col := range header {
		switch col {
		case "id":
			rec[i] = strconv.Itoa(t.ID)
		case "title":
			rec[i] = t.Title
		case "category":
			rec[i] = t.Category
		case "body":
			rec[i] = t.Body
		}
	}
	return rec
}

// Len returns the number of tips.
func (l *Library) Len() int {
	return len(l.tips)
}

// All returns a copy of every tip in dataset order.
func (l *Library) All() []Tip {
	out := make([]Tip, len(l.tips))
	copy(out, l.tips)
	return out
}

// Search returns tips whose title or category contains query, ignoring case.
// An empty (or all-space) query matches nothing.
func (l *Library) Search(query string) []Tip {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []Tip
	for _, t := range l.tips {
		if strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Category), q) {
			out = append(out, t)
		}
	}
	return out
}

// FilterByCategories returns tips whose category is exactly one of categories.
func (l *Library) FilterByCategories(categories []string) []Tip {
	if len(categories) == 0 {
		return nil
	}
	set := make(map[string]bool, len(categories))
	for _, c := range categories {
		set[c] = true
	}
	var out []Tip
	for _, t := range l.tips {
		if set[t.Category] {
			out = append(out, t)
		}
	}
	return out
}

// FindByID looks up a tip by id.
func (l *Library) FindByID(id int) (Tip, bool) {
	i, ok := l.byID[id]
	if !ok {
		return Tip{}, false
	}
	return l.tips[i], true
}

// MaxID returns the largest id in the library, or 0 when empty.
func (l *Library) MaxID() int {
	max := 0
	for _, t := range l.tips {
		if t.ID > max {
			max = t.ID
		}
	}
	return max
}
