// Package preview renders short plain-text excerpts of message payloads for
// the "failed to send" list. The core never interprets payloads for delivery;
// previews are a display concern only.
package preview

import (
	"encoding/json"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// DefaultLimit is the excerpt length used by the diagnostics surface.
const DefaultLimit = 120

// Excerpt returns a plain-text preview of a message payload, at most limit
// runes. Payloads carrying a JSON object with a "text" field are treated as
// markdown chat messages; anything else previews as-is.
func Excerpt(payload json.RawMessage, limit int) string {
	if limit <= 0 {
		limit = DefaultLimit
	}

	source := extractText(payload)
	plain := markdownToPlainText(source)
	plain = strings.Join(strings.Fields(plain), " ")

	runes := []rune(plain)
	if len(runes) <= limit {
		return plain
	}
	return string(runes[:limit-1]) + "…"
}

// extractText pulls the text field out of a chat payload, falling back to
// the raw bytes.
func extractText(payload json.RawMessage) string {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Text != "" {
		return body.Text
	}
	return string(payload)
}

// markdownToPlainText strips markdown structure by walking the goldmark AST
// and collecting text nodes.
func markdownToPlainText(source string) string {
	md := goldmark.New()
	src := []byte(source)
	node := md.Parser().Parse(text.NewReader(src))

	var builder strings.Builder

	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n.Kind() {
		case ast.KindText:
			textNode := n.(*ast.Text)
			builder.Write(textNode.Segment.Value(src))
			if textNode.HardLineBreak() || textNode.SoftLineBreak() {
				builder.WriteByte(' ')
			}
		case ast.KindParagraph, ast.KindHeading, ast.KindListItem:
			if builder.Len() > 0 {
				builder.WriteByte(' ')
			}
		}

		return ast.WalkContinue, nil
	})

	return builder.String()
}
