package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// HTMLParser turns HTML email bodies into plain text
type HTMLParser struct {
	policy          *bluemonday.Policy
	whitespaceRegex *regexp.Regexp
	newlineRegex    *regexp.Regexp
	invisibleRegex  *regexp.Regexp
	tagLikeRegex    *regexp.Regexp
}

// NewHTMLParser creates a new HTML parser
func NewHTMLParser() *HTMLParser {
	// UGC keeps block structure but drops scripts, styles, comments and
	// anything active
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("div", "span", "table", "thead", "tbody", "tr", "td", "th")

	return &HTMLParser{
		policy:          policy,
		whitespaceRegex: regexp.MustCompile(`[^\S\n]+`),
		newlineRegex:    regexp.MustCompile(`\n{3,}`),
		tagLikeRegex:    regexp.MustCompile(`<([a-zA-Z/!?])`),
		// zero-width spaces, soft hyphens and friends
		invisibleRegex: regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00AD}\x{034F}\x{061C}\x{115F}\x{1160}\x{17B4}\x{17B5}\x{180E}\x{2060}-\x{2064}\x{206A}-\x{206F}\x{FE00}-\x{FE0F}\x{FFF0}-\x{FFF8}]+`),
	}
}

// Parse converts HTML to clean plain text. Entities are decoded, so escaped
// markup such as &lt;b&gt; would come out as a literal tag; a space is put
// after any "<" that starts a tag-like sequence so the text never contains
// markup.
func (p *HTMLParser) Parse(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	sanitized := p.policy.Sanitize(html)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sanitized))
	if err != nil {
		return "", err
	}

	doc.Find("p, div, br, h1, h2, h3, h4, h5, h6, li, tr, blockquote, pre").Each(func(i int, s *goquery.Selection) {
		s.PrependHtml("\n")
	})
	doc.Find("td, th").Each(func(i int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	text := doc.Text()
	text = p.invisibleRegex.ReplaceAllString(text, "")
	text = p.tagLikeRegex.ReplaceAllString(text, "< $1")
	text = p.whitespaceRegex.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	clean := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			clean = append(clean, line)
		}
	}
	text = strings.Join(clean, "\n")
	text = p.newlineRegex.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text), nil
}
