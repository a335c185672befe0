package jsonview

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const card = `{"name":"Echo","version":"1.0","capabilities":{"streaming":true},"skills":[{"id":"echo","tags":["a","b"]}],"limit":12345678901234567890}`

func TestFormatThenMinifyPreservesValue(t *testing.T) {
	formatted, err := Format([]byte(card), DefaultIndent)
	require.NoError(t, err)
	assert.Contains(t, string(formatted), "\n  \"name\": \"Echo\"")

	minified, err := Minify(formatted)
	require.NoError(t, err)
	assert.Equal(t, card, string(minified), "key order and number literals survive the round trip")

	var want, got any
	require.NoError(t, json.Unmarshal([]byte(card), &want))
	require.NoError(t, json.Unmarshal(minified, &got))
	assert.Equal(t, want, got)
}

func TestFormatCustomIndent(t *testing.T) {
	out, err := Format([]byte(` {"a":[1,2]} `), "\t")
	require.NoError(t, err)
	assert.Equal(t, "{\n\t\"a\": [\n\t\t1,\n\t\t2\n\t]\n}", string(out))
}

func TestInvalidJSON(t *testing.T) {
	_, err := Format([]byte(`{"a":`), DefaultIndent)
	assert.ErrorContains(t, err, "failed to format JSON")

	_, err = Minify([]byte(`nope`))
	assert.ErrorContains(t, err, "failed to minify JSON")
}

func TestRender(t *testing.T) {
	v := map[string]any{"url": "https://a.example.com/?q=<x>&y=1"}

	compact, err := Render(v, true)
	require.NoError(t, err)
	assert.Equal(t, `{"url":"https://a.example.com/?q=<x>&y=1"}`, string(compact))

	pretty, err := Render(v, false)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"url\": \"https://a.example.com/?q=<x>&y=1\"\n}", string(pretty))
}
