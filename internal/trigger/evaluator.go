// Package trigger implements the pure rule matcher that decides whether
// an action's trigger rules apply to a signaled session. Evaluation has
// no side effects beyond reporting the voice-prefix strip.
package trigger

import (
	"regexp"
	"strings"

	"voxd/internal/types"
)

// Context is the candidate data a rule is evaluated against.
type Context struct {
	Transcript string
	AppName    string
	AppID      string
	Mode       string
}

// Match is the evaluation result. Stripped carries the transcript with
// a matched literal voice prefix removed; when no strip applied it
// equals the original transcript.
type Match struct {
	OK       bool
	Stripped string
}

// Evaluate decides whether rules match ctx.
//
// A dimension is configured when it has at least one include or exclude
// pattern. Unconfigured dimensions contribute nothing to either AND or
// OR combination: they neither force a match nor veto one. A rule with
// no configured dimension never matches.
func Evaluate(rules types.TriggerRules, ctx Context) Match {
	out := Match{Stripped: ctx.Transcript}

	type dimResult struct {
		configured bool
		matched    bool
	}

	voice := dimResult{configured: rules.Voice.Configured()}
	if voice.configured {
		ok, stripped := matchVoice(rules.Voice, ctx.Transcript)
		voice.matched = ok
		if ok {
			out.Stripped = stripped
		}
	}

	app := dimResult{configured: rules.App.Configured()}
	if app.configured {
		app.matched = matchAny(rules.App, ctx.AppName) || matchAny(rules.App, ctx.AppID)
	}

	mode := dimResult{configured: rules.Mode.Configured()}
	if mode.configured {
		mode.matched = matchAny(rules.Mode, ctx.Mode)
	}

	dims := []dimResult{voice, app, mode}

	anyConfigured := false
	allMatched := true
	anyMatched := false
	for _, d := range dims {
		if !d.configured {
			continue
		}
		anyConfigured = true
		if d.matched {
			anyMatched = true
		} else {
			allMatched = false
		}
	}
	if !anyConfigured {
		return Match{Stripped: ctx.Transcript}
	}

	logic := rules.Logic
	if logic == "" {
		logic = types.TriggerAND
	}
	switch logic {
	case types.TriggerOR:
		out.OK = anyMatched
	default:
		out.OK = allMatched
	}
	if !out.OK {
		out.Stripped = ctx.Transcript
	}
	return out
}

// matchVoice evaluates the voice dimension and computes the strip. Only
// a literal (non-raw) include match strips; the stripped text is the
// transcript with the matched prefix removed.
func matchVoice(dim types.Dimension, transcript string) (bool, string) {
	if excluded(dim.Exclude, transcript) {
		return false, transcript
	}
	if len(dim.Include) == 0 {
		// Exclude-only dimension: the include side is vacuously
		// satisfied, nothing to strip.
		return true, transcript
	}
	for _, p := range dim.Include {
		if raw, ok := rawExpr(p); ok {
			if raw == nil {
				continue
			}
			if raw.MatchString(transcript) {
				return true, transcript
			}
			continue
		}
		if hasPrefixFold(transcript, p) {
			return true, transcript[len(p):]
		}
	}
	return false, transcript
}

// matchAny evaluates a non-voice dimension against one candidate string.
func matchAny(dim types.Dimension, candidate string) bool {
	if excluded(dim.Exclude, candidate) {
		return false
	}
	if len(dim.Include) == 0 {
		return true
	}
	for _, p := range dim.Include {
		if raw, ok := rawExpr(p); ok {
			if raw == nil {
				continue
			}
			if raw.MatchString(candidate) {
				return true
			}
			continue
		}
		if hasPrefixFold(candidate, p) {
			return true
		}
	}
	return false
}

// excluded reports whether any exclude pattern hits the candidate.
// Literal excludes match anywhere, case-insensitively: an exclusion
// word spoken mid-sentence must still veto the rule. A leading "!" on
// an exclude entry is accepted and ignored for compatibility with
// configs that spell exclusion inline.
func excluded(patterns []string, candidate string) bool {
	for _, p := range patterns {
		p = strings.TrimPrefix(p, "!")
		if p == "" {
			continue
		}
		if raw, ok := rawExpr(p); ok {
			if raw == nil {
				continue
			}
			if raw.MatchString(candidate) {
				return true
			}
			continue
		}
		if containsFold(candidate, p) {
			return true
		}
	}
	return false
}

// rawExpr recognizes the raw-regex delimiter form /.../ and compiles
// the inner expression. An uncompilable raw pattern yields a nil
// regexp, which never matches; config validation reports the error
// separately.
func rawExpr(p string) (*regexp.Regexp, bool) {
	if len(p) < 2 || !strings.HasPrefix(p, "/") || !strings.HasSuffix(p, "/") {
		return nil, false
	}
	expr := p[1 : len(p)-1]
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return nil, true
	}
	return re, true
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
