package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"voxd/internal/types"
)

func rules(voice, app, mode types.Dimension, logic types.TriggerLogic) types.TriggerRules {
	return types.TriggerRules{Voice: voice, App: app, Mode: mode, Logic: logic}
}

func TestEvaluate_VoicePrefixStripping(t *testing.T) {
	r := rules(
		types.Dimension{Include: []string{"send email"}, Exclude: []string{"!urgent"}},
		types.Dimension{}, types.Dimension{}, types.TriggerOR,
	)

	t.Run("literal prefix matches and strips", func(t *testing.T) {
		m := Evaluate(r, Context{Transcript: "send email to bob"})
		assert.True(t, m.OK)
		assert.Equal(t, " to bob", m.Stripped)
	})

	t.Run("exclude vetoes the match", func(t *testing.T) {
		m := Evaluate(r, Context{Transcript: "send email urgent"})
		assert.False(t, m.OK)
		assert.Equal(t, "send email urgent", m.Stripped)
	})

	t.Run("prefix match is case-insensitive", func(t *testing.T) {
		m := Evaluate(r, Context{Transcript: "Send Email now"})
		assert.True(t, m.OK)
		assert.Equal(t, " now", m.Stripped)
	})

	t.Run("mid-sentence occurrence is not a prefix", func(t *testing.T) {
		m := Evaluate(r, Context{Transcript: "please send email"})
		assert.False(t, m.OK)
	})
}

func TestEvaluate_EmptyDimensionIgnored(t *testing.T) {
	// Regression: an unconfigured dimension must contribute nothing to
	// AND evaluation, neither auto-satisfied nor auto-failed.
	r := rules(
		types.Dimension{},
		types.Dimension{Include: []string{"Mail"}},
		types.Dimension{},
		types.TriggerAND,
	)

	m := Evaluate(r, Context{Transcript: "anything at all", AppName: "Mail"})
	assert.True(t, m.OK, "empty voice dimension must be ignored under AND")
	assert.Equal(t, "anything at all", m.Stripped, "no voice rule, no strip")

	m = Evaluate(r, Context{Transcript: "anything", AppName: "Terminal"})
	assert.False(t, m.OK)
}

func TestEvaluate_ANDRequiresAllConfigured(t *testing.T) {
	r := rules(
		types.Dimension{Include: []string{"send email"}},
		types.Dimension{Include: []string{"Mail"}},
		types.Dimension{},
		types.TriggerAND,
	)

	t.Run("both match", func(t *testing.T) {
		m := Evaluate(r, Context{Transcript: "send email to bob", AppName: "Mail"})
		assert.True(t, m.OK)
		assert.Equal(t, " to bob", m.Stripped)
	})

	t.Run("voice only", func(t *testing.T) {
		m := Evaluate(r, Context{Transcript: "send email to bob", AppName: "Safari"})
		assert.False(t, m.OK)
		assert.Equal(t, "send email to bob", m.Stripped, "failed rule must not strip")
	})

	t.Run("app only", func(t *testing.T) {
		m := Evaluate(r, Context{Transcript: "open calendar", AppName: "Mail"})
		assert.False(t, m.OK)
	})
}

func TestEvaluate_ORRequiresAnyConfigured(t *testing.T) {
	r := rules(
		types.Dimension{Include: []string{"translate"}},
		types.Dimension{Include: []string{"Slack"}},
		types.Dimension{},
		types.TriggerOR,
	)

	assert.True(t, Evaluate(r, Context{Transcript: "translate this", AppName: "Mail"}).OK)
	assert.True(t, Evaluate(r, Context{Transcript: "hello", AppName: "Slack"}).OK)
	assert.False(t, Evaluate(r, Context{Transcript: "hello", AppName: "Mail"}).OK)
}

func TestEvaluate_NoConfiguredDimensionsNeverMatches(t *testing.T) {
	for _, logic := range []types.TriggerLogic{types.TriggerAND, types.TriggerOR} {
		m := Evaluate(rules(types.Dimension{}, types.Dimension{}, types.Dimension{}, logic),
			Context{Transcript: "anything"})
		assert.False(t, m.OK, "logic=%s", logic)
	}
}

func TestEvaluate_RawRegexPatterns(t *testing.T) {
	t.Run("matches anywhere and never strips", func(t *testing.T) {
		r := rules(types.Dimension{Include: []string{`/\bemail\b/`}}, types.Dimension{}, types.Dimension{}, types.TriggerAND)
		m := Evaluate(r, Context{Transcript: "please email bob"})
		assert.True(t, m.OK)
		assert.Equal(t, "please email bob", m.Stripped, "raw matches never strip")
	})

	t.Run("raw exclude", func(t *testing.T) {
		r := rules(types.Dimension{
			Include: []string{"note"},
			Exclude: []string{`/urgent|asap/`},
		}, types.Dimension{}, types.Dimension{}, types.TriggerAND)
		assert.True(t, Evaluate(r, Context{Transcript: "note buy milk"}).OK)
		assert.False(t, Evaluate(r, Context{Transcript: "note do it asap"}).OK)
	})

	t.Run("invalid raw pattern never matches", func(t *testing.T) {
		r := rules(types.Dimension{Include: []string{`/[unclosed/`}}, types.Dimension{}, types.Dimension{}, types.TriggerAND)
		assert.False(t, Evaluate(r, Context{Transcript: "[unclosed"}).OK)
	})
}

func TestEvaluate_AppMatchesNameOrIdentifier(t *testing.T) {
	r := rules(types.Dimension{}, types.Dimension{Include: []string{"com.apple.mail"}}, types.Dimension{}, types.TriggerAND)
	m := Evaluate(r, Context{AppName: "Mail", AppID: "com.apple.mail"})
	assert.True(t, m.OK)
}

func TestEvaluate_ModeDimension(t *testing.T) {
	r := rules(types.Dimension{}, types.Dimension{}, types.Dimension{Include: []string{"coding"}}, types.TriggerAND)
	assert.True(t, Evaluate(r, Context{Mode: "coding"}).OK)
	assert.False(t, Evaluate(r, Context{Mode: "notes"}).OK)
}

func TestEvaluate_ExcludeOnlyDimension(t *testing.T) {
	// A dimension with only excludes is configured; it matches unless
	// an exclude fires.
	r := rules(types.Dimension{Exclude: []string{"private"}}, types.Dimension{}, types.Dimension{}, types.TriggerAND)
	assert.True(t, Evaluate(r, Context{Transcript: "normal text"}).OK)
	assert.False(t, Evaluate(r, Context{Transcript: "this is private stuff"}).OK)
}

func TestEvaluate_DefaultLogicIsAND(t *testing.T) {
	r := rules(
		types.Dimension{Include: []string{"go"}},
		types.Dimension{Include: []string{"Term"}},
		types.Dimension{}, "",
	)
	assert.False(t, Evaluate(r, Context{Transcript: "go build", AppName: "Mail"}).OK)
	assert.True(t, Evaluate(r, Context{Transcript: "go build", AppName: "Terminal"}).OK)
}
