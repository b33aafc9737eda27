// Package mgmd turns post markdown into HTML.
package mgmd

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"golang.org/x/xerrors"

	"github.com/monograph/monograph/internal/util/stringutil"
)

// PreviewLength is how much of a post's markdown source feeds its listing
// preview.
const PreviewLength = 600

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// Render converts markdown source to HTML. Raw HTML in the source passes
// through untouched since the only author is the site's owner.
func Render(source string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "", xerrors.Errorf("error rendering markdown: %w", err)
	}
	return buf.String(), nil
}

// RenderPreview renders at most PreviewLength characters of source, which is
// what listings show.
func RenderPreview(source string) (string, error) {
	return Render(stringutil.TruncateRunes(source, PreviewLength))
}

// Title extracts a post's display title: the text of the first heading when
// the post starts with one, otherwise its first non-empty line, cut down to
// something that fits in a <title> tag.
func Title(source string) string {
	const maxTitleLength = 80

	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if trimmed := strings.TrimLeft(line, "#"); trimmed != line {
			line = strings.TrimSpace(trimmed)
		}
		return stringutil.TruncateRunes(line, maxTitleLength)
	}

	return ""
}
