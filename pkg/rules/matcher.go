package rules

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/esm-tools/cmorize/pkg/errors"
	"github.com/esm-tools/cmorize/pkg/logging"
)

// Matcher tests candidate files against the patterns of resolved rules
type Matcher struct {
	logger zerolog.Logger
}

// NewMatcher creates a new rule matcher
func NewMatcher() *Matcher {
	return &Matcher{
		logger: logging.GetLogger("rules.matcher"),
	}
}

// Match tests every candidate path against the rule's patterns. A path
// matches when any one pattern matches (OR across patterns). Zero matches
// is an empty result, never an error; whether that is fatal is the
// scheduler's call.
func (m *Matcher) Match(rule *Rule, candidates []string) []MatchResult {
	var results []MatchResult
	for _, path := range candidates {
		captures, ok := m.matchPath(rule, path)
		if !ok {
			continue
		}
		results = append(results, MatchResult{Path: path, Rule: rule, Captures: captures})
	}
	m.logger.Debug().
		Str("rule", rule.ID()).
		Int("candidates", len(candidates)).
		Int("matches", len(results)).
		Msg("Matched candidates against rule")
	return results
}

// matchPath returns the captures of the first pattern matching the path
func (m *Matcher) matchPath(rule *Rule, path string) (map[string]string, bool) {
	for _, re := range rule.patterns {
		if match := re.FindStringSubmatch(path); match != nil {
			return namedCaptures(re, match), true
		}
	}
	base := filepath.Base(path)
	dir := filepath.Clean(filepath.Dir(path))
	for _, in := range rule.inputs {
		if in.Path != "" && filepath.Clean(in.Path) != dir {
			continue
		}
		if match := in.Pattern.FindStringSubmatch(base); match != nil {
			return namedCaptures(in.Pattern, match), true
		}
	}
	return nil, false
}

// Discover lists each input collection directory of the rule and matches
// entries against the collection's pattern. Directories are only touched
// here; no data is loaded.
func (m *Matcher) Discover(ctx context.Context, rule *Rule) ([]MatchResult, error) {
	var results []MatchResult
	for _, in := range rule.inputs {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCancelled, "input discovery cancelled")
		}
		entries, err := os.ReadDir(in.Path)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot list input directory %s", in.Path).
				WithDetail("rule", rule.ID()).
				WithDetail("path", in.Path)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			match := in.Pattern.FindStringSubmatch(entry.Name())
			if match == nil {
				continue
			}
			results = append(results, MatchResult{
				Path:     filepath.Join(in.Path, entry.Name()),
				Rule:     rule,
				Captures: namedCaptures(in.Pattern, match),
			})
		}
	}
	m.logger.Debug().
		Str("rule", rule.ID()).
		Int("matches", len(results)).
		Msg("Discovered input files")
	return results, nil
}

func namedCaptures(re *regexp.Regexp, match []string) map[string]string {
	captures := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name == "" || i >= len(match) || match[i] == "" {
			continue
		}
		captures[name] = match[i]
	}
	return captures
}

// dateLayouts are tried in order against a "date" capture group
var dateLayouts = []string{"20060102", "200601", "2006"}

// DateKey derives a chronological sort key from the extracted captures:
// either a "date" group, or "year" with optional "month" and "day" groups.
func (res MatchResult) DateKey() (time.Time, bool) {
	if raw, ok := res.Captures["date"]; ok {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, true
			}
		}
	}
	rawYear, ok := res.Captures["year"]
	if !ok {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(rawYear)
	if err != nil {
		return time.Time{}, false
	}
	month, day := 1, 1
	if raw, ok := res.Captures["month"]; ok {
		if v, err := strconv.Atoi(raw); err == nil {
			month = v
		}
	}
	if raw, ok := res.Captures["day"]; ok {
		if v, err := strconv.Atoi(raw); err == nil {
			day = v
		}
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// Year returns the extracted year, when present
func (res MatchResult) Year() (int, bool) {
	t, ok := res.DateKey()
	if !ok {
		return 0, false
	}
	return t.Year(), true
}

// SortByDate orders matches chronologically by extracted date key, with the
// path as tiebreaker so the order is deterministic even without captures
func SortByDate(results []MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		ti, iok := results[i].DateKey()
		tj, jok := results[j].DateKey()
		if iok && jok && !ti.Equal(tj) {
			return ti.Before(tj)
		}
		if iok != jok {
			return iok
		}
		return results[i].Path < results[j].Path
	})
}

// FilterByYear keeps matches whose extracted year falls within [start, end]
func FilterByYear(results []MatchResult, start, end int) []MatchResult {
	var out []MatchResult
	for _, res := range results {
		year, ok := res.Year()
		if !ok {
			continue
		}
		if year >= start && year <= end {
			out = append(out, res)
		}
	}
	return out
}
