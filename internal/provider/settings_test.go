package provider

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestParseSettingsRequiredMissing(t *testing.T) {
	schema := Schema{{Key: "apiKey", Kind: SettingKindSecret, Required: true}}

	_, err := ParseSettings(schema, Settings{})
	require.Error(t, err)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "apiKey", validationErr.Key)

	// Nil and empty string count as missing.
	_, err = ParseSettings(schema, Settings{"apiKey": nil})
	assert.Error(t, err)
	_, err = ParseSettings(schema, Settings{"apiKey": ""})
	assert.Error(t, err)
}

func TestParseSettingsRequiredWhitespaceOnly(t *testing.T) {
	schema := Schema{{Key: "apiKey", Kind: SettingKindSecret, Required: true}}

	_, err := ParseSettings(schema, Settings{"apiKey": "   "})
	require.Error(t, err)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "apiKey", validationErr.Key)
}

func TestParseSettingsTrimsStrings(t *testing.T) {
	schema := Schema{{Key: "baseURL", Kind: SettingKindURL, Required: true}}

	out, err := ParseSettings(schema, Settings{"baseURL": "  https://example.com  "})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", out["baseURL"])
}

func TestParseSettingsNumber(t *testing.T) {
	schema := Schema{{Key: "n", Kind: SettingKindNumber, Required: true, Min: floatPtr(1), Max: floatPtr(4)}}

	out, err := ParseSettings(schema, Settings{"n": "2"})
	require.NoError(t, err)
	assert.Equal(t, float64(2), out["n"])

	out, err = ParseSettings(schema, Settings{"n": 3})
	require.NoError(t, err)
	assert.Equal(t, float64(3), out["n"])

	_, err = ParseSettings(schema, Settings{"n": "abc"})
	assert.ErrorContains(t, err, "must be a valid number")

	_, err = ParseSettings(schema, Settings{"n": 0.5})
	assert.ErrorContains(t, err, "must be at least 1, got 0.5")

	_, err = ParseSettings(schema, Settings{"n": 10})
	assert.ErrorContains(t, err, "must be at most 4, got 10")
}

func TestParseSettingsNumberRejectsNaNAndInf(t *testing.T) {
	schema := Schema{{Key: "n", Kind: SettingKindNumber, Required: true, Min: floatPtr(1), Max: floatPtr(4)}}

	// NaN compares false against both bounds, so it must be rejected before
	// the range checks ever run.
	for _, v := range []any{"NaN", "nan", math.NaN(), "Inf", "-Inf", math.Inf(1)} {
		_, err := ParseSettings(schema, Settings{"n": v})
		assert.ErrorContains(t, err, "must be a valid number", "value %v", v)
	}
}

func TestParseSettingsBoolean(t *testing.T) {
	schema := Schema{{Key: "builtin", Kind: SettingKindBoolean, Required: true}}

	for _, v := range []any{true, "true", "1", "yes", "YES", " True "} {
		out, err := ParseSettings(schema, Settings{"builtin": v})
		require.NoError(t, err, "value %v", v)
		assert.Equal(t, true, out["builtin"], "value %v", v)
	}
	for _, v := range []any{false, "false", "0", "no", "No"} {
		out, err := ParseSettings(schema, Settings{"builtin": v})
		require.NoError(t, err, "value %v", v)
		assert.Equal(t, false, out["builtin"], "value %v", v)
	}

	_, err := ParseSettings(schema, Settings{"builtin": "maybe"})
	assert.Error(t, err)
	_, err = ParseSettings(schema, Settings{"builtin": 1})
	assert.Error(t, err)
}

func TestParseSettingsOptions(t *testing.T) {
	schema := Schema{{Key: "size", Kind: SettingKindString, Required: true, Options: []string{"small", "large"}}}

	out, err := ParseSettings(schema, Settings{"size": "small"})
	require.NoError(t, err)
	assert.Equal(t, "small", out["size"])

	_, err = ParseSettings(schema, Settings{"size": "medium"})
	assert.ErrorContains(t, err, "must be one of")
}

func TestParseSettingsDefaults(t *testing.T) {
	schema := Schema{
		{Key: "apiKey", Kind: SettingKindSecret, Required: true},
		{Key: "baseURL", Kind: SettingKindURL, Default: "https://api.openai.com/v1"},
		{Key: "model", Kind: SettingKindString},
	}

	out, err := ParseSettings(schema, Settings{"apiKey": "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1", out["baseURL"])
	// Optional without default is omitted, never set to nil.
	_, present := out["model"]
	assert.False(t, present)
}

func TestParseSettingsIgnoresUnknownKeys(t *testing.T) {
	schema := Schema{{Key: "apiKey", Kind: SettingKindSecret, Required: true}}

	out, err := ParseSettings(schema, Settings{"apiKey": "sk-test", "mystery": 42})
	require.NoError(t, err)
	assert.Equal(t, Settings{"apiKey": "sk-test"}, out)
}

func TestParseSettingsIdempotent(t *testing.T) {
	schema := Schema{
		{Key: "apiKey", Kind: SettingKindSecret, Required: true},
		{Key: "baseURL", Kind: SettingKindURL, Default: "https://api.openai.com/v1"},
		{Key: "n", Kind: SettingKindNumber, Default: float64(1)},
		{Key: "builtin", Kind: SettingKindBoolean, Default: true},
	}
	in := Settings{"apiKey": " sk-test ", "n": "2", "builtin": "yes"}

	once, err := ParseSettings(schema, in)
	require.NoError(t, err)
	twice, err := ParseSettings(schema, once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}
