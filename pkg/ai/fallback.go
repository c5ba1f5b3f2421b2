package ai

import (
	"fmt"

	"giftai/pkg/domain"
)

const dedicationRule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// FormatContent wraps generated prose with the gift dedication header.
func FormatContent(req domain.BookRequest, prose string) string {
	return fmt.Sprintf("A Special Gift for %s\n\nFrom: %s\n\n%s\n\n%s",
		req.Name, req.Giver, dedicationRule, prose)
}

// FallbackStory returns the deterministic offline placeholder narrative
// used whenever the text provider is unavailable or fails. It is built
// from the same request fields so creation never blocks on the provider.
func FallbackStory(req domain.BookRequest) string {
	body := fmt.Sprintf(
		"Chapter 1: The Beginning\n\n"+
			"Once upon a time, there was a wonderful person named %s. "+
			"This is a personalized story created just for you! "+
			"The theme of this story is %s, and it will be told in a %s tone. "+
			"This is a placeholder story. Configure a text-generation API key to generate a real personalized book.",
		req.Name, req.Theme, req.Tone)
	return FormatContent(req, body)
}
