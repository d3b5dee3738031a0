package content

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
)

// richBlock is one block of the editor's serialized document.
type richBlock struct {
	Type     string          `json:"type"`
	Props    map[string]any  `json:"props"`
	Content  json.RawMessage `json:"content"`
	Children []richBlock     `json:"children"`
}

type richInline struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Href    string          `json:"href"`
	Styles  map[string]any  `json:"styles"`
	Content json.RawMessage `json:"content"`
}

func looksLikeRichState(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[{") && !strings.HasPrefix(s, `{"blocks"`) {
		return false
	}
	_, err := decodeRichState(s)
	return err == nil
}

func decodeRichState(raw string) ([]richBlock, error) {
	raw = strings.TrimSpace(raw)
	var blocks []richBlock
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &blocks); err != nil {
			return nil, fmt.Errorf("decode blocks: %v: %w", err, nberrors.ErrParse)
		}
	} else {
		var wrapped struct {
			Blocks []richBlock `json:"blocks"`
		}
		if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
			return nil, fmt.Errorf("decode document: %v: %w", err, nberrors.ErrParse)
		}
		if wrapped.Blocks == nil {
			return nil, fmt.Errorf("document has no blocks: %w", nberrors.ErrParse)
		}
		blocks = wrapped.Blocks
	}
	for _, b := range blocks {
		if strings.TrimSpace(b.Type) == "" {
			return nil, fmt.Errorf("block without type: %w", nberrors.ErrParse)
		}
	}
	return blocks, nil
}

// RenderRichState converts a serialized editor document to HTML.
func RenderRichState(raw string) (string, error) {
	blocks, err := decodeRichState(raw)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	renderBlocks(&b, blocks)
	return b.String(), nil
}

func renderBlocks(b *strings.Builder, blocks []richBlock) {
	for i := 0; i < len(blocks); i++ {
		blk := blocks[i]
		switch blk.Type {
		case "bulletListItem", "numberedListItem", "checkListItem":
			tag := "ul"
			if blk.Type == "numberedListItem" {
				tag = "ol"
			}
			b.WriteString("<" + tag + ">")
			j := i
			for ; j < len(blocks) && blocks[j].Type == blk.Type; j++ {
				renderListItem(b, blocks[j])
			}
			b.WriteString("</" + tag + ">")
			i = j - 1
		default:
			renderBlock(b, blk)
		}
	}
}

func renderListItem(b *strings.Builder, blk richBlock) {
	b.WriteString("<li>")
	if blk.Type == "checkListItem" {
		if checked, _ := blk.Props["checked"].(bool); checked {
			b.WriteString(`<input type="checkbox" checked disabled> `)
		} else {
			b.WriteString(`<input type="checkbox" disabled> `)
		}
	}
	b.WriteString(renderInline(blk.Content))
	if len(blk.Children) > 0 {
		renderBlocks(b, blk.Children)
	}
	b.WriteString("</li>")
}

func renderBlock(b *strings.Builder, blk richBlock) {
	inner := renderInline(blk.Content)
	switch blk.Type {
	case "heading":
		level := 1
		if v, ok := blk.Props["level"].(float64); ok && v >= 1 && v <= 6 {
			level = int(v)
		}
		fmt.Fprintf(b, "<h%d>%s</h%d>", level, inner, level)
	case "codeBlock":
		lang, _ := blk.Props["language"].(string)
		if lang != "" {
			fmt.Fprintf(b, `<pre><code class="language-%s">%s</code></pre>`, html.EscapeString(lang), plainInline(blk.Content))
		} else {
			fmt.Fprintf(b, "<pre><code>%s</code></pre>", plainInline(blk.Content))
		}
	case "quote":
		fmt.Fprintf(b, "<blockquote>%s</blockquote>", inner)
	case "image":
		url, _ := blk.Props["url"].(string)
		caption, _ := blk.Props["caption"].(string)
		if url != "" {
			fmt.Fprintf(b, `<img src="%s" alt="%s">`, html.EscapeString(url), html.EscapeString(caption))
		}
	default:
		if inner != "" {
			fmt.Fprintf(b, "<p>%s</p>", inner)
		}
	}
	if len(blk.Children) > 0 {
		b.WriteString("<div>")
		renderBlocks(b, blk.Children)
		b.WriteString("</div>")
	}
}

func decodeInline(raw json.RawMessage) []richInline {
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	var items []richInline
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

func renderInline(raw json.RawMessage) string {
	var b strings.Builder
	for _, it := range decodeInline(raw) {
		switch it.Type {
		case "link":
			fmt.Fprintf(&b, `<a href="%s">%s</a>`, html.EscapeString(it.Href), renderInline(it.Content))
		default:
			b.WriteString(styled(html.EscapeString(it.Text), it.Styles))
		}
	}
	return b.String()
}

func plainInline(raw json.RawMessage) string {
	var b strings.Builder
	for _, it := range decodeInline(raw) {
		b.WriteString(html.EscapeString(it.Text))
	}
	return b.String()
}

func styled(text string, styles map[string]any) string {
	if text == "" {
		return ""
	}
	on := func(k string) bool { v, _ := styles[k].(bool); return v }
	if on("code") {
		text = "<code>" + text + "</code>"
	}
	if on("bold") {
		text = "<strong>" + text + "</strong>"
	}
	if on("italic") {
		text = "<em>" + text + "</em>"
	}
	if on("underline") {
		text = "<u>" + text + "</u>"
	}
	if on("strike") {
		text = "<s>" + text + "</s>"
	}
	return text
}
