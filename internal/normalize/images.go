package normalize

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var imgSrcRe = regexp.MustCompile(`(?i)<img[^>]+src=["']?([^"'\s>]+)`)

// ExtractImages returns the image URLs referenced by a markdown document, from image
// nodes and from <img> tags in raw HTML. Root-relative URLs are prefixed with apiURL;
// anything that is neither root-relative nor http(s) is ignored.
func ExtractImages(source, apiURL string) []string {
	if source == "" {
		return nil
	}
	src := []byte(source)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var files []string
	add := func(dest string) {
		switch {
		case strings.HasPrefix(dest, "/"):
			files = append(files, apiURL+dest)
		case len(dest) >= 4 && strings.EqualFold(dest[:4], "http"):
			files = append(files, dest)
		}
	}
	addHTML := func(html string) {
		for _, m := range imgSrcRe.FindAllStringSubmatch(html, -1) {
			add(m[1])
		}
	}

	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Image:
			add(string(n.Destination))
		case *ast.HTMLBlock:
			html := segmentsText(n.Lines(), src)
			if n.HasClosure() {
				html += string(n.ClosureLine.Value(src))
			}
			addHTML(html)
		case *ast.RawHTML:
			addHTML(segmentsText(n.Segments, src))
		}
		return ast.WalkContinue, nil
	})
	return files
}

func segmentsText(segs *text.Segments, src []byte) string {
	if segs == nil {
		return ""
	}
	var b strings.Builder
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		b.Write(seg.Value(src))
	}
	return b.String()
}

// uploadKey is the upload map key for an image URL: the API origin, any fragment
// and any query string are removed.
func uploadKey(uri, apiURL string) string {
	key := uri
	if apiURL != "" {
		key = strings.Replace(key, apiURL, "", 1)
	}
	key, _, _ = strings.Cut(key, "#")
	key, _, _ = strings.Cut(key, "?")
	return key
}
