// Package suppress filters OCR readings before they enter the record
// history. Rules are ordered; a reading matching any rule is dropped.
package suppress

import (
	"encoding/json"
	"strings"

	"github.com/agentsight/percept/internal/detect"
	apperrors "github.com/agentsight/percept/internal/errors"
	"github.com/agentsight/percept/internal/frame"
)

// Reasons reported by Evaluate.
const (
	ReasonKeywordMatch = "keyword_match"
	ReasonColorMatch   = "color_match"
)

// Kind discriminates rule variants.
type Kind string

const (
	KindKeyword Kind = "keyword"
	KindColor   Kind = "color"
)

// Rule is one suppression criterion. Keyword rules match when any
// phrase appears in the reading text, case-insensitively. Color rules
// match when the fraction of region pixels inside the target band
// reaches MinCoverage.
type Rule struct {
	Kind        Kind           `json:"kind"`
	Phrases     []string       `json:"phrases,omitempty"`
	Target      *detect.Target `json:"target,omitempty"`
	MinCoverage float64        `json:"min_coverage,omitempty"`
}

// Validate checks the rule is well-formed for its kind.
func (r Rule) Validate() error {
	switch r.Kind {
	case KindKeyword:
		for _, p := range r.Phrases {
			if strings.TrimSpace(p) != "" {
				return nil
			}
		}
		return apperrors.New(apperrors.CodeInvalidArgument, "keyword rule needs at least one phrase")
	case KindColor:
		if r.Target == nil {
			return apperrors.New(apperrors.CodeInvalidArgument, "color rule needs a target")
		}
		if r.MinCoverage <= 0 || r.MinCoverage > 1 {
			return apperrors.Newf(apperrors.CodeInvalidArgument, "color rule coverage %g outside (0, 1]", r.MinCoverage)
		}
		return nil
	default:
		return apperrors.Newf(apperrors.CodeInvalidArgument, "unknown rule kind: %q", r.Kind)
	}
}

// ParseRules decodes and validates an ordered rule list.
func ParseRules(data []byte) ([]Rule, error) {
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "invalid suppression rules")
	}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

// Decision is the full evaluation outcome for one reading.
type Decision struct {
	Suppressed  bool     `json:"suppressed"`
	Reasons     []string `json:"reasons"`
	KeywordHits int      `json:"keyword_hits"`
	ColorHits   int      `json:"color_hits"`
}

// ShouldSuppress reports whether any rule matches, checking rules in
// order and stopping at the first match. Color rules are skipped when
// no region frame is available.
func ShouldSuppress(text string, f *frame.Frame, rules []Rule) bool {
	folded := strings.ToLower(text)
	for _, rule := range rules {
		switch rule.Kind {
		case KindKeyword:
			if countPhraseHits(folded, rule.Phrases) > 0 {
				return true
			}
		case KindColor:
			if hits, ok := colorHits(f, rule); ok && reachesCoverage(hits, f.PixelCount(), rule.MinCoverage) {
				return true
			}
		}
	}
	return false
}

// Evaluate runs every rule and reports the aggregate outcome, including
// hit counts for the record pipeline report.
func Evaluate(text string, f *frame.Frame, rules []Rule) Decision {
	d := Decision{Reasons: []string{}}
	folded := strings.ToLower(text)

	for _, rule := range rules {
		switch rule.Kind {
		case KindKeyword:
			hits := countPhraseHits(folded, rule.Phrases)
			d.KeywordHits += hits
			if hits > 0 {
				d.Suppressed = true
				d.Reasons = appendReason(d.Reasons, ReasonKeywordMatch)
			}
		case KindColor:
			hits, ok := colorHits(f, rule)
			if !ok {
				continue
			}
			d.ColorHits += hits
			if reachesCoverage(hits, f.PixelCount(), rule.MinCoverage) {
				d.Suppressed = true
				d.Reasons = appendReason(d.Reasons, ReasonColorMatch)
			}
		}
	}
	return d
}

func countPhraseHits(foldedText string, phrases []string) int {
	hits := 0
	for _, p := range phrases {
		needle := strings.ToLower(strings.TrimSpace(p))
		if needle != "" && strings.Contains(foldedText, needle) {
			hits++
		}
	}
	return hits
}

func colorHits(f *frame.Frame, rule Rule) (int, bool) {
	if f == nil || rule.Target == nil {
		return 0, false
	}
	matches, err := detect.Scan(f, *rule.Target)
	if err != nil {
		return 0, false
	}
	return len(matches), true
}

func reachesCoverage(hits, pixels int, minCoverage float64) bool {
	if pixels <= 0 {
		return false
	}
	return float64(hits)/float64(pixels) >= minCoverage
}

func appendReason(reasons []string, reason string) []string {
	for _, r := range reasons {
		if r == reason {
			return reasons
		}
	}
	return append(reasons, reason)
}
