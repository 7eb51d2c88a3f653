package adfilter

import (
	"fmt"
	"regexp"
)

// Regex deletes every case-insensitive match of a user pattern from the raw text.
type Regex struct {
	re *regexp.Regexp
}

func NewRegex(pattern string) (*Regex, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("compile filter pattern: %w", err)
	}
	return &Regex{re: re}, nil
}

func (r *Regex) Name() string { return "regex" }

func (r *Regex) Apply(content string) string {
	return r.re.ReplaceAllLiteralString(content, "")
}
