package render

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Chapter headings across the supported story languages, e.g.
// "Chapter 3", "Kapitel 1", "Глава 2", "الفصل 4".
var chapterPattern = regexp.MustCompile(`(?i)^(Chapter|Bölüm|Kapitel|Chapitre|Capítulo|Capitolo|Глава|章|الفصل)\s+\d+`)

// Short capitalized line with terminal punctuation; treated as a section title.
var titlePattern = regexp.MustCompile(`^[A-Z][^.!?]*[.!?]$`)

var paragraphSplit = regexp.MustCompile(`\n\n+`)

const titleLengthLimit = 100

// IsRightToLeft reports whether the language is typeset right-to-left.
func IsRightToLeft(language string) bool {
	return strings.EqualFold(language, "Arabic") || strings.EqualFold(language, "Hebrew")
}

// Direction returns the HTML text-direction value for a language.
func Direction(language string) string {
	if IsRightToLeft(language) {
		return "rtl"
	}
	return "ltr"
}

// ToHTML converts generated prose into a styled HTML document. Reserved
// markup characters are escaped, blank-line separated blocks are
// classified as chapter headings, section titles, or body paragraphs,
// and the document direction follows the language.
func ToHTML(content, language string) string {
	content = escapeMarkup(content)

	var body strings.Builder
	for _, para := range paragraphSplit.Split(content, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		switch {
		case chapterPattern.MatchString(para):
			body.WriteString(`<h2 class="chapter-title">` + para + "</h2>\n")
		case utf8.RuneCountInString(para) < titleLengthLimit && titlePattern.MatchString(para):
			body.WriteString(`<h3 class="section-title">` + para + "</h3>\n")
		default:
			para = strings.ReplaceAll(para, "\n", " ")
			body.WriteString(`<p class="story-text">` + para + "</p>\n")
		}
	}

	dir := Direction(language)
	align := "justify"
	if dir == "rtl" {
		align = "right"
	}
	langAttr := "en"
	if strings.TrimSpace(language) != "" {
		langAttr = strings.ToLower(language)
	}

	return fmt.Sprintf(`<!DOCTYPE html><html lang=%q dir=%q><head><meta charset="UTF-8"><style>
@page { size: A5; margin: 2cm 2.5cm; }
body { font-family: 'Times New Roman', 'DejaVu Serif', serif; line-height: 1.8; font-size: 11pt; color: #2c3e50; text-align: %s; direction: %s; orphans: 3; widows: 3; }
.chapter-title { text-align: center; color: #8b5cf6; margin: 30px 0 20px 0; font-size: 18pt; font-weight: bold; page-break-after: avoid; }
.section-title { text-align: center; color: #a78bfa; margin: 20px 0 15px 0; font-size: 14pt; font-weight: bold; font-style: italic; page-break-after: avoid; }
.story-text { margin-bottom: 12px; text-indent: 1.5em; text-align: %s; orphans: 3; widows: 3; }
.story-text:first-of-type { text-indent: 0; }
.story-text:first-letter { font-size: 1.5em; font-weight: bold; color: #8b5cf6; }
</style></head><body>%s</body></html>`, langAttr, dir, align, dir, align, body.String())
}

func escapeMarkup(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
