package filter

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/LidetuK/captiviteee-sub000/internal/types"
	"github.com/rs/zerolog"
)

const defaultReplacement = "[redacted]"

// Outcome is the result of running text through a rule set
type Outcome struct {
	Text       string `json:"text"`
	Flagged    bool   `json:"flagged"`
	FlagReason string `json:"flagReason,omitempty"`
}

// Pipeline screens text against ordered filter rules. It is stateless with
// respect to the text; the only state is a cache of compiled regexes.
type Pipeline struct {
	mu     sync.Mutex
	regexp map[string]*regexp.Regexp
	logger zerolog.Logger
}

// NewPipeline creates a Pipeline
func NewPipeline(logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		regexp: make(map[string]*regexp.Regexp),
		logger: logger,
	}
}

// Apply evaluates rules in declaration order against text.
//
// A block match short-circuits the rest of the pipeline and yields empty
// output. A flag match records the first reason and keeps processing, so a
// later rule may still block. A replace match substitutes every occurrence
// and keeps processing. A log match only logs. Invalid regex patterns are
// logged and skipped rather than failing the pipeline. Semantic and
// sentiment rules need NLP metadata that is not available at this stage and
// are skipped.
func (p *Pipeline) Apply(text string, rules []types.FilterRule) Outcome {
	out := Outcome{Text: text}

	for _, rule := range rules {
		switch rule.Type {
		case types.FilterKeyword, types.FilterRegex:
		default:
			continue
		}

		matched, replaced, ok := p.match(out.Text, rule)
		if !ok || !matched {
			continue
		}

		reason := fmt.Sprintf("%s rule matched: %s", rule.Type, rule.Pattern)

		switch rule.Action {
		case types.ActionBlock:
			return Outcome{Text: "", Flagged: true, FlagReason: reason}

		case types.ActionFlag:
			if !out.Flagged {
				out.Flagged = true
				out.FlagReason = reason
			}

		case types.ActionReplace:
			out.Text = replaced

		case types.ActionLog:
			p.logger.Info().
				Str("pattern", rule.Pattern).
				Str("severity", rule.Severity).
				Msg("filter rule logged a match")
		}
	}

	return out
}

// match reports whether the rule matches text and returns the text with all
// matches replaced. ok is false when the rule's pattern is unusable.
func (p *Pipeline) match(text string, rule types.FilterRule) (matched bool, replaced string, ok bool) {
	replacement := rule.Replacement
	if replacement == "" {
		replacement = defaultReplacement
	}

	switch rule.Type {
	case types.FilterKeyword:
		// Keyword rules ride the regex cache: a quoted case-insensitive
		// pattern keeps matching and replacement rune-safe where byte
		// offsets on a lowered copy would not be.
		if rule.Pattern == "" {
			return false, text, true
		}
		re, err := p.compile("(?i)" + regexp.QuoteMeta(rule.Pattern))
		if err != nil {
			return false, text, false
		}
		if !re.MatchString(text) {
			return false, text, true
		}
		return true, re.ReplaceAllLiteralString(text, replacement), true

	case types.FilterRegex:
		re, err := p.compile(rule.Pattern)
		if err != nil {
			p.logger.Warn().Err(err).Str("pattern", rule.Pattern).Msg("invalid regex pattern, rule skipped")
			return false, text, false
		}
		if !re.MatchString(text) {
			return false, text, true
		}
		return true, re.ReplaceAllString(text, replacement), true
	}

	return false, text, true
}

// compile returns a cached compiled regex for pattern
func (p *Pipeline) compile(pattern string) (*regexp.Regexp, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if re, ok := p.regexp[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	p.regexp[pattern] = re
	return re, nil
}
