package render

import (
	"strings"
	"testing"
)

func TestToHTMLClassifiesBlocks(t *testing.T) {
	content := "Chapter 1: The Beginning\n\nA Magical Morning!\n\nOnce upon a time, Mia woke up.\nShe looked outside."
	doc := ToHTML(content, "English")

	if !strings.Contains(doc, `<h2 class="chapter-title">Chapter 1: The Beginning</h2>`) {
		t.Error("chapter heading not classified")
	}
	if !strings.Contains(doc, `<h3 class="section-title">A Magical Morning!</h3>`) {
		t.Error("short titled line not classified")
	}
	if !strings.Contains(doc, `<p class="story-text">Once upon a time, Mia woke up. She looked outside.</p>`) {
		t.Error("body paragraph not emitted with inner newlines collapsed")
	}
}

func TestToHTMLMultilingualChapterHeadings(t *testing.T) {
	for _, heading := range []string{
		"Chapter 2", "chapter 3: The Sea", "Bölüm 1", "Kapitel 4", "Chapitre 5",
		"Capítulo 6", "Capitolo 7", "Глава 8", "الفصل 2",
	} {
		doc := ToHTML(heading, "English")
		if !strings.Contains(doc, "chapter-title") {
			t.Errorf("heading %q not recognized as chapter", heading)
		}
	}
	if doc := ToHTML("Chapters are fun and long and they never end here at all", "English"); strings.Contains(doc, "chapter-title") {
		t.Error("plain sentence misclassified as chapter heading")
	}
}

func TestToHTMLEscapesMarkup(t *testing.T) {
	doc := ToHTML("Mia saw a <dragon> & smiled.", "English")
	if strings.Contains(doc, "<dragon>") {
		t.Error("markup characters must be escaped")
	}
	if !strings.Contains(doc, "&lt;dragon&gt; &amp; smiled.") {
		t.Error("expected escaped entities in output")
	}
}

func TestToHTMLTitleLengthCountsCharacters(t *testing.T) {
	title := "El " + strings.Repeat("á", 70) + "!"
	if doc := ToHTML(title, "Spanish"); !strings.Contains(doc, "section-title") {
		t.Error("accented title under the character limit must classify as a title")
	}
	long := "El " + strings.Repeat("á", 120) + "!"
	if doc := ToHTML(long, "Spanish"); strings.Contains(doc, "section-title") {
		t.Error("line over the character limit must stay a body paragraph")
	}
}

func TestToHTMLDirection(t *testing.T) {
	if doc := ToHTML("text", "Arabic"); !strings.Contains(doc, `dir="rtl"`) {
		t.Error("Arabic should render right-to-left")
	}
	if doc := ToHTML("text", "Hebrew"); !strings.Contains(doc, `dir="rtl"`) {
		t.Error("Hebrew should render right-to-left")
	}
	if doc := ToHTML("text", "English"); !strings.Contains(doc, `dir="ltr"`) {
		t.Error("English should render left-to-right")
	}
	if doc := ToHTML("text", ""); !strings.Contains(doc, `dir="ltr"`) {
		t.Error("absent language should default to left-to-right")
	}
}

func TestDirection(t *testing.T) {
	if Direction("arabic") != "rtl" || Direction("HEBREW") != "rtl" {
		t.Error("direction matching should ignore case")
	}
	if Direction("Turkish") != "ltr" || Direction("") != "ltr" {
		t.Error("non-RTL languages should default to ltr")
	}
}
