// Package content turns a raw file on disk into normalized, indexable
// text: it detects the content type, strips markup down to prose, pulls
// out title/tags where the format carries them, classifies the
// document's purpose, and decides whether the result is worth indexing
// at all.
package content

import "github.com/docsearchd/docsearchd/internal/registry"

// ContentType is the detected shape of a document's raw bytes.
type ContentType string

const (
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeHTML     ContentType = "html"
	ContentTypeText     ContentType = "text"
	ContentTypeJSON     ContentType = "json"
	ContentTypeYAML     ContentType = "yaml"
	ContentTypeTOML     ContentType = "toml"
	ContentTypeRST      ContentType = "rst"
	ContentTypeAdoc     ContentType = "adoc"
	ContentTypeOrg      ContentType = "org"
	ContentTypeUnknown  ContentType = "unknown"
)

// maxIndexableSize rejects anything bigger than this, per the
// should-index filter (content this large is almost certainly a data
// dump, not prose meant for retrieval).
const maxIndexableSize = 16 * 1024 * 1024

// Processed is the output of running one document through Process: the
// cleaned prose plus whatever title/tags the format surfaced.
type Processed struct {
	ContentType ContentType
	Cleaned     string
	Title       string
	Tags        []string
}

// extensionTable maps file extensions to ContentType, adapted from
// scanner.languageMap but collapsed to the document-centric content_type
// enum rather than per-language granularity.
var extensionTable = map[string]ContentType{
	".md":       ContentTypeMarkdown,
	".markdown": ContentTypeMarkdown,
	".mdx":      ContentTypeMarkdown,
	".html":     ContentTypeHTML,
	".htm":      ContentTypeHTML,
	".txt":      ContentTypeText,
	".json":     ContentTypeJSON,
	".yaml":     ContentTypeYAML,
	".yml":      ContentTypeYAML,
	".toml":     ContentTypeTOML,
	".rst":      ContentTypeRST,
	".adoc":     ContentTypeAdoc,
	".asciidoc": ContentTypeAdoc,
	".org":      ContentTypeOrg,
}

// docTypePatterns maps a doc type to the regexes matched against a
// document's relative path, adapted from config.DetectProjectType's
// marker-file pattern but generalized from "file exists" to "path
// matches".
var docTypePatterns = []struct {
	docType registry.DocType
	pattern string
}{
	{registry.DocTypeADR, `(?i)(^|/)(adr|decisions?)[s]?(/|[-_]).*\.(md|markdown|txt|rst)$`},
	{registry.DocTypeBlueprint, `(?i)(^|/)(blueprint|design|rfc)s?(/|[-_])`},
	{registry.DocTypeWhitepaper, `(?i)(^|/)(whitepaper|white-paper)s?(/|[-_])`},
	{registry.DocTypeRoadmap, `(?i)(^|/)roadmap`},
	{registry.DocTypeReview, `(?i)(^|/)(review|retro(spective)?)s?(/|[-_])`},
}
