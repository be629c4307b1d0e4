package markdown

import (
	"html/template"
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var (
	paragraphPattern = regexp.MustCompile(`<p>(.*?)</p>`)
	tagPattern       = regexp.MustCompile(`</?([a-zA-Z]+)(?:\s[^>]*)?>`)
	tagNamePattern   = regexp.MustCompile(`</?([a-zA-Z]+)`)
	newlinePattern   = regexp.MustCompile(`\n{2,}`)
)

// tags kept in the sidebar, everything else is dropped with its markup only
var sidebarTags = map[string]bool{
	"strong": true, "em": true, "del": true, "code": true, "a": true, "br": true,
}

// ToSidebarHTML converts a streamer description to the inline HTML shown
// under the avatar
func ToSidebarHTML(markdown string) template.HTML {
	if markdown == "" {
		return ""
	}

	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.SkipHTML | blackfriday.Safelink | blackfriday.NofollowLinks |
			blackfriday.NoreferrerLinks | blackfriday.HrefTargetBlank,
	})
	html := string(blackfriday.Run([]byte(markdown),
		blackfriday.WithExtensions(blackfriday.CommonExtensions),
		blackfriday.WithRenderer(renderer),
	))

	return template.HTML(cleanHTMLForSidebar(html))
}

func cleanHTMLForSidebar(html string) string {
	// Paragraphs become line breaks
	html = paragraphPattern.ReplaceAllString(html, "$1\n\n")

	// Lists keep their content
	html = strings.ReplaceAll(html, "<li>", "• ")
	html = strings.ReplaceAll(html, "</li>", "\n")

	html = tagPattern.ReplaceAllStringFunc(html, func(match string) string {
		tagMatch := tagNamePattern.FindStringSubmatch(match)
		if len(tagMatch) > 1 && sidebarTags[strings.ToLower(tagMatch[1])] {
			return match
		}
		return ""
	})

	html = strings.TrimSpace(html)
	html = newlinePattern.ReplaceAllString(html, "<br>")
	return strings.ReplaceAll(html, "\n", "<br>")
}
