package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/matthewjhunter/healthtips"
	"github.com/matthewjhunter/healthtips/internal/content"
)

type Format string

const (
	FormatJSON  Format = "json"
	FormatText  Format = "text"
	FormatHuman Format = "human"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatText, FormatHuman:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown format: %s", s)
}

type Formatter struct {
	format Format
	out    io.Writer
	err    io.Writer
}

// NewFormatter creates a new output formatter
func NewFormatter(format Format) *Formatter {
	return &Formatter{
		format: format,
		out:    os.Stdout,
		err:    os.Stderr,
	}
}

// NewFormatterWithWriters creates a formatter with custom output writers for testability
func NewFormatterWithWriters(format Format, out, errW io.Writer) *Formatter {
	return &Formatter{
		format: format,
		out:    out,
		err:    errW,
	}
}

// OutputTips outputs a list of health tips
func (f *Formatter) OutputTips(tips []healthtips.HealthTip) error {
	switch f.format {
	case FormatJSON:
		if tips == nil {
			tips = []healthtips.HealthTip{}
		}
		return json.NewEncoder(f.out).Encode(tips)
	case FormatText:
		for _, t := range tips {
			fmt.Fprintf(f.out, "id=%d\tcategory=%s\ttitle=%s\n", t.ID, t.Category, t.Title)
		}
		return nil
	case FormatHuman:
		if len(tips) == 0 {
			fmt.Fprintln(f.out, "No matching tips")
			return nil
		}
		fmt.Fprintf(f.out, "Tips (%d):\n\n", len(tips))
		for _, t := range tips {
			fmt.Fprintf(f.out, "[%d] %s\n", t.ID, t.Title)
			fmt.Fprintf(f.out, "Category: %s\n", t.Category)
			if t.Body != "" {
				fmt.Fprintf(f.out, "%s\n", truncate(t.Body, 200))
			}
			fmt.Fprintln(f.out, "---")
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputUsers outputs registered accounts. Passwords are never part of User.
func (f *Formatter) OutputUsers(users []healthtips.User) error {
	switch f.format {
	case FormatJSON:
		if users == nil {
			users = []healthtips.User{}
		}
		return json.NewEncoder(f.out).Encode(users)
	case FormatText:
		for _, u := range users {
			fmt.Fprintf(f.out, "username=%s\temail=%s\tpreferences=%s\n",
				u.Username, u.Email, strings.Join(u.Preferences, ","))
		}
		return nil
	case FormatHuman:
		if len(users) == 0 {
			fmt.Fprintln(f.out, "No registered users")
			return nil
		}
		fmt.Fprintf(f.out, "Users (%d):\n\n", len(users))
		for _, u := range users {
			prefs := "(none)"
			if len(u.Preferences) > 0 {
				prefs = strings.Join(u.Preferences, ", ")
			}
			fmt.Fprintf(f.out, "%s <%s>\n", u.Username, u.Email)
			fmt.Fprintf(f.out, "  Preferences: %s\n", prefs)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputViews outputs view log entries
func (f *Formatter) OutputViews(views []healthtips.ViewRecord) error {
	switch f.format {
	case FormatJSON:
		if views == nil {
			views = []healthtips.ViewRecord{}
		}
		return json.NewEncoder(f.out).Encode(views)
	case FormatText:
		for _, v := range views {
			fmt.Fprintf(f.out, "email=%s\tid=%d\ttimestamp=%s\n",
				v.UserEmail, v.RecommendationID, v.Timestamp)
		}
		return nil
	case FormatHuman:
		if len(views) == 0 {
			fmt.Fprintln(f.out, "No views recorded")
			return nil
		}
		for _, v := range views {
			fmt.Fprintf(f.out, "%s  %-30s  tip #%d\n", v.Timestamp, v.UserEmail, v.RecommendationID)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputImportResult outputs the result of a feed import
func (f *Formatter) OutputImportResult(result *content.ImportResult) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(result)
	case FormatText:
		fmt.Fprintf(f.out, "items=%d\n", result.Items)
		fmt.Fprintf(f.out, "added=%d\n", result.Added)
		fmt.Fprintf(f.out, "skipped=%d\n", result.Skipped)
		return nil
	case FormatHuman:
		title := result.FeedTitle
		if title == "" {
			title = "feed"
		}
		fmt.Fprintf(f.out, "Imported %d of %d items from %s\n", result.Added, result.Items, title)
		if result.Added > 0 {
			fmt.Fprintf(f.out, "New tip IDs start at %d\n", result.FirstID)
		}
		if result.Skipped > 0 {
			fmt.Fprintf(f.out, "Skipped %d duplicate titles\n", result.Skipped)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputMessage outputs a one-line status message
func (f *Formatter) OutputMessage(msg string) error {
	if f.format == FormatJSON {
		return json.NewEncoder(f.out).Encode(map[string]string{"message": msg})
	}
	_, err := fmt.Fprintln(f.out, msg)
	return err
}

// Error outputs an error message to stderr
func (f *Formatter) Error(format string, args ...interface{}) {
	fmt.Fprintf(f.err, format+"\n", args...)
}

// Warning outputs a warning message to stderr
func (f *Formatter) Warning(format string, args ...interface{}) {
	fmt.Fprintf(f.err, "Warning: "+format+"\n", args...)
}

// truncate truncates a string to maxLen characters
func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
