package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_ByExtension(t *testing.T) {
	assert.Equal(t, ContentTypeMarkdown, Detect("docs/readme.md", nil))
	assert.Equal(t, ContentTypeHTML, Detect("page.html", nil))
	assert.Equal(t, ContentTypeJSON, Detect("data.json", nil))
	assert.Equal(t, ContentTypeYAML, Detect("config.yaml", nil))
	assert.Equal(t, ContentTypeTOML, Detect("Cargo.toml", nil))
}

func TestDetect_BySniffing(t *testing.T) {
	assert.Equal(t, ContentTypeHTML, Detect("noext", []byte("<!doctype html><html></html>")))
	assert.Equal(t, ContentTypeMarkdown, Detect("noext", []byte("---\ntitle: x\n---\nbody")))
	assert.Equal(t, ContentTypeJSON, Detect("noext", []byte(`{"a": 1}`)))
	assert.Equal(t, ContentTypeText, Detect("noext", []byte("just some words")))
}

func TestProcessMarkdown_ExtractsFrontMatterAndStripsMarkup(t *testing.T) {
	raw := []byte(`---
title: Query Pipeline ADR
tags: [search, adr]
---
# Query Pipeline ADR

See [the spec](https://example.com/spec) for details.

` + "```go\nfmt.Println(\"hi\")\n```")

	p, err := Process(ContentTypeMarkdown, raw)
	require.NoError(t, err)
	assert.Equal(t, "Query Pipeline ADR", p.Title)
	assert.ElementsMatch(t, []string{"search", "adr"}, p.Tags)
	assert.Contains(t, p.Cleaned, "Query Pipeline ADR")
	assert.Contains(t, p.Cleaned, "the spec")
	assert.NotContains(t, p.Cleaned, "](https://example.com/spec)")
	assert.Contains(t, p.Cleaned, `fmt.Println("hi")`)
	assert.NotContains(t, p.Cleaned, "```")
}

func TestProcessMarkdown_TitleFallsBackToFirstHeading(t *testing.T) {
	p, err := Process(ContentTypeMarkdown, []byte("# Roadmap 2026\n\nBody text."))
	require.NoError(t, err)
	assert.Equal(t, "Roadmap 2026", p.Title)
}

func TestProcessHTML_StripsScriptsAndTags(t *testing.T) {
	raw := []byte(`<html><head><script>alert(1)</script><style>body{color:red}</style></head>
<body><h1>Title</h1><p>Hello &amp; welcome.</p></body></html>`)

	p, err := Process(ContentTypeHTML, raw)
	require.NoError(t, err)
	assert.NotContains(t, p.Cleaned, "alert(1)")
	assert.NotContains(t, p.Cleaned, "color:red")
	assert.Contains(t, p.Cleaned, "Title")
	assert.Contains(t, p.Cleaned, "Hello & welcome.")
}

func TestProcessJSON_FlattensToKeyValueLines(t *testing.T) {
	raw := []byte(`{"name": "docsearchd", "version": 1, "tags": ["a", "b"]}`)
	p, err := Process(ContentTypeJSON, raw)
	require.NoError(t, err)
	assert.Contains(t, p.Cleaned, "name: docsearchd")
	assert.Contains(t, p.Cleaned, "version: 1")
	assert.Contains(t, p.Cleaned, "tags: a, b")
}

func TestProcessJSON_SkipsOversizedPrimitiveArrays(t *testing.T) {
	arr := make([]byte, 0)
	arr = append(arr, []byte(`{"nums": [`)...)
	for i := 0; i < 40; i++ {
		if i > 0 {
			arr = append(arr, ',')
		}
		arr = append(arr, []byte("1")...)
	}
	arr = append(arr, []byte(`]}`)...)

	p, err := Process(ContentTypeJSON, arr)
	require.NoError(t, err)
	assert.NotContains(t, p.Cleaned, "nums:")
}

func TestClassify_MatchesPathPatterns(t *testing.T) {
	assert.Equal(t, "adr", string(Classify("docs/adr/0007-use-hnsw.md", "")))
	assert.Equal(t, "roadmap", string(Classify("docs/roadmap.md", "")))
	assert.Equal(t, "generic", string(Classify("docs/notes.md", "")))
}

func TestShouldIndex(t *testing.T) {
	assert.True(t, ShouldIndex(ContentTypeText, 100, "hello"))
	assert.False(t, ShouldIndex(ContentTypeText, 100, "   "))
	assert.False(t, ShouldIndex(ContentTypeText, maxIndexableSize+1, "hello"))
	assert.False(t, ShouldIndex(ContentTypeUnknown, 100, "hello"))
}
