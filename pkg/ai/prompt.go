package ai

import (
	"fmt"
	"strings"

	"giftai/pkg/domain"
)

// SystemPrompt is the authorial persona and length envelope sent with
// every book generation request.
const SystemPrompt = "You are a talented children's book author specializing in full-length, chapter-based stories. " +
	"Create personalized, engaging, and age-appropriate EXTENSIVE stories (6000-8000 words) that captivate young readers. " +
	"Your stories should be warm, imaginative, include 8-10 chapters, rich descriptions, extensive dialogue, and character development. " +
	"Always include the recipient's name naturally throughout the narrative. " +
	"Write extensively with long paragraphs (3-5 sentences minimum), detailed scenes, and meaningful content on every page. " +
	"This is a full book - fill every page with engaging content. No short paragraphs or empty spaces."

// BuildPrompt composes the (system, user) instruction pair for a book
// request. Pure and deterministic; optional fields that are empty are
// omitted entirely rather than rendered as empty clauses.
func BuildPrompt(req domain.BookRequest) (string, string) {
	var b strings.Builder
	b.WriteString("Create a personalized children's book as a gift. Write a complete, engaging, LONG story with the following details:\n\n")
	fmt.Fprintf(&b, "Recipient's Name: %s\n", req.Name)
	fmt.Fprintf(&b, "Recipient's Age: %d years old\n", req.Age)

	if gender := strings.TrimSpace(req.Gender); gender != "" {
		fmt.Fprintf(&b, "\nRecipient's Gender: %s\n", gender)
		b.WriteString("- Use appropriate pronouns (he/him for Boy, she/her for Girl, they/them for Other)\n")
		b.WriteString("- Make the story gender-appropriate and inclusive\n")
	}
	if language := strings.TrimSpace(req.Language); language != "" {
		fmt.Fprintf(&b, "\nLanguage: Write the ENTIRE story in %s language\n", language)
		fmt.Fprintf(&b, "- All text, dialogue, narration, and content must be in %s\n", language)
		fmt.Fprintf(&b, "- Use proper grammar and vocabulary for %s\n", language)
		b.WriteString("- Maintain cultural authenticity if applicable\n")
	}

	fmt.Fprintf(&b, "Theme: %s\n", req.Theme)
	if topic := strings.TrimSpace(req.MainTopic); topic != "" {
		fmt.Fprintf(&b, "\nMain Topic/Subject: %s\n", topic)
		b.WriteString("- The story should revolve around this main topic\n")
		b.WriteString("- Incorporate this theme throughout the narrative\n")
		b.WriteString("- Make it the central focus of the story\n")
	}
	fmt.Fprintf(&b, "Tone: %s\n", req.Tone)
	fmt.Fprintf(&b, "Gift Giver: %s\n", req.Giver)

	if appearance := strings.TrimSpace(req.Appearance); appearance != "" {
		fmt.Fprintf(&b, "\nRecipient's Appearance: %s\n", appearance)
		b.WriteString("- Create a vivid visual description of the character based on this appearance\n")
		b.WriteString("- Include detailed physical descriptions throughout the story\n")
		b.WriteString("- Make the character's appearance an integral part of the narrative\n")
	}
	if len(req.Characters) > 0 {
		b.WriteString("\nCharacters in the Story:\n")
		for _, c := range req.Characters {
			fmt.Fprintf(&b, "- %s (%s):\n", c.Name, c.Type)
			fmt.Fprintf(&b, "  Appearance: %s\n", orUnspecified(c.Appearance))
			fmt.Fprintf(&b, "  Description: %s\n", orUnspecified(c.Description))
			b.WriteString("  - Include this character naturally throughout the story\n")
			b.WriteString("  - Make them an integral part of the narrative\n")
			b.WriteString("  - Use their appearance and description to create vivid scenes\n")
		}
	}

	b.WriteString("\nRequirements:\n")
	b.WriteString("- Write a full-length story (6000-8000 words)\n")
	b.WriteString("- Create 8-10 chapters\n")
	b.WriteString("- Each chapter should be 600-900 words\n")
	b.WriteString("- Use long paragraphs (minimum 3-5 sentences per paragraph)\n")
	b.WriteString("- Include rich descriptions, extensive dialogue, and character development\n")
	b.WriteString("- Naturally incorporate the recipient's name throughout the narrative\n")
	b.WriteString("- Make it age-appropriate and engaging\n")
	b.WriteString("- Fill every page with meaningful content, no short paragraphs or empty spaces\n")
	b.WriteString("- Format with clear chapter headings (Chapter 1, Chapter 2, etc.)")

	return SystemPrompt, b.String()
}

func orUnspecified(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "Not specified"
	}
	return s
}
