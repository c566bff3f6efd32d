package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// GetText concatenates every text node under `node`. Unlike goquery's Text() it works
// on a bare *html.Node so it can be used on script and style elements directly.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// NormalizeText strips non-printable runes, trims and collapses inner whitespace.
func NormalizeText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	return innerWhitespace.ReplaceAllString(s, " ")
}

// ResolveUrl resolves `ref` against `base`, it returns "" if `ref` is empty or unparsable.
// Protocol relative references ("//cdn.example.com/x.png") inherit the scheme of `base`.
func ResolveUrl(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		if !parsed.IsAbs() {
			return ""
		}
		return parsed.String()
	}
	return base.ResolveReference(parsed).String()
}

// IsAbsoluteHttpUrl reports whether `s` is an absolute http(s) url.
func IsAbsoluteHttpUrl(s string) bool {
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

type Anchor struct {
	Name string
	Href *url.URL
}

// GetAnchors returns the anchors in `sel` with their hrefs resolved against `base`,
// anchors without a parsable href are skipped.
func GetAnchors(base *url.URL, sel *goquery.Selection) []Anchor {
	var anchors []Anchor
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}
		resolved := ResolveUrl(base, href)
		if resolved == "" {
			continue
		}
		link, err := url.Parse(resolved)
		if err != nil {
			continue
		}

		anchors = append(anchors, Anchor{
			Name: NormalizeText(GetText(n)),
			Href: link,
		})
	}
	return anchors
}
