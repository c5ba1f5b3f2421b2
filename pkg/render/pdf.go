package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/net/html"
)

type blockKind int

const (
	blockChapter blockKind = iota
	blockTitle
	blockBody
)

type block struct {
	kind blockKind
	text string
}

// parseDocument walks the rendered HTML and extracts the typeset blocks
// plus the document direction.
func parseDocument(htmlDoc string) ([]block, bool, error) {
	root, err := html.Parse(strings.NewReader(htmlDoc))
	if err != nil {
		return nil, false, fmt.Errorf("parse html: %w", err)
	}
	var blocks []block
	rtl := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "html":
				for _, attr := range n.Attr {
					if attr.Key == "dir" && attr.Val == "rtl" {
						rtl = true
					}
				}
			case "h2":
				blocks = append(blocks, block{kind: blockChapter, text: textContent(n)})
				return
			case "h3":
				blocks = append(blocks, block{kind: blockTitle, text: textContent(n)})
				return
			case "p":
				blocks = append(blocks, block{kind: blockBody, text: textContent(n)})
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return blocks, rtl, nil
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

// Compact book trim: A5 with 2cm vertical and 2.5cm horizontal margins.
const (
	marginSide   = 25.0
	marginTop    = 20.0
	marginBottom = 20.0

	bodyLine     = 7.0 // 11pt at 1.8 line height
	headingLine  = 10.0
	minKeptLines = 3 // widow/orphan control
)

// writePDF lays the HTML document out onto A5 pages and writes the file.
func writePDF(htmlDoc, bookName, fontPath, outPath string) error {
	blocks, rtl, err := parseDocument(htmlDoc)
	if err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetTitle(bookName, true)
	pdf.SetMargins(marginSide, marginTop, marginSide)
	pdf.SetAutoPageBreak(true, marginBottom)

	family := "Times"
	translate := pdf.UnicodeTranslatorFromDescriptor("")
	if fontPath != "" {
		// Embedded TTF for scripts outside the core-font codepage.
		family = "story"
		for _, style := range []string{"", "B", "I"} {
			pdf.AddUTF8Font(family, style, fontPath)
		}
		translate = func(s string) string { return s }
	}
	if rtl {
		pdf.RTL()
	}
	pdf.AddPage()

	pageW, pageH, _ := pdf.PageSize(1)
	contentW := pageW - 2*marginSide
	firstBody := true

	for _, blk := range blocks {
		text := translate(blk.text)
		switch blk.kind {
		case blockChapter:
			keepWithNext(pdf, pageH, headingLine+minKeptLines*bodyLine)
			pdf.Ln(6)
			pdf.SetFont(family, "B", 18)
			pdf.SetTextColor(139, 92, 246)
			pdf.MultiCell(contentW, headingLine, text, "", "C", false)
			pdf.Ln(3)
		case blockTitle:
			keepWithNext(pdf, pageH, 8+minKeptLines*bodyLine)
			pdf.Ln(4)
			pdf.SetFont(family, "BI", 14)
			pdf.SetTextColor(167, 139, 250)
			pdf.MultiCell(contentW, 8, text, "", "C", false)
			pdf.Ln(2)
		case blockBody:
			pdf.SetFont(family, "", 11)
			pdf.SetTextColor(44, 62, 80)
			writeParagraph(pdf, family, pageH, contentW, text, rtl, firstBody)
			firstBody = false
		}
	}

	return pdf.OutputFileAndClose(outPath)
}

// keepWithNext starts a new page when fewer than needed millimeters remain,
// so headings are never stranded at a page bottom.
func keepWithNext(pdf *gofpdf.Fpdf, pageH, needed float64) {
	if pageH-marginBottom-pdf.GetY() < needed {
		pdf.AddPage()
	}
}

func writeParagraph(pdf *gofpdf.Fpdf, family string, pageH, contentW float64, text string, rtl, first bool) {
	align := "J"
	if rtl {
		align = "R"
	}
	if !first {
		// First-line indent on every paragraph after the opening one.
		text = "    " + text
	}

	// Keep at least three lines together across a page break.
	lines := pdf.SplitText(text, contentW)
	kept := len(lines)
	if kept > minKeptLines {
		kept = minKeptLines
	}
	if pageH-marginBottom-pdf.GetY() < float64(kept)*bodyLine {
		pdf.AddPage()
	}

	if first && !rtl {
		writeDropCap(pdf, family, text)
		return
	}
	pdf.MultiCell(contentW, bodyLine, text, "", align, false)
	pdf.Ln(2.5)
}

// writeDropCap renders the opening paragraph with an enlarged initial.
// gofpdf has no float layout, so the cap is inline on the first line.
func writeDropCap(pdf *gofpdf.Fpdf, family, text string) {
	first, size := utf8.DecodeRuneInString(text)
	if size == 0 {
		return
	}
	pdf.SetFont(family, "B", 16.5)
	pdf.SetTextColor(139, 92, 246)
	pdf.Write(bodyLine, string(first))
	pdf.SetFont(family, "", 11)
	pdf.SetTextColor(44, 62, 80)
	pdf.Write(bodyLine, text[size:])
	pdf.Ln(bodyLine)
	pdf.Ln(2.5)
}
