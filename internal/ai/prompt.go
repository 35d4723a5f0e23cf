package ai

import (
	"fmt"
	"strings"

	"github.com/shinyyama/leaselink-backend/internal/model"
)

const systemPrompt = `You are a helpful assistant for LeaseLink, a student sublease marketplace.
Answer the renter's question using only the listing data below. Answer concisely in the language of the question.
If the listing data does not contain the answer, say so and suggest contacting the lister through chat.
If the question is unrelated to the listing, politely guide the user back to it.`

const dateLayout = "2006-01-02"

// BuildListingPrompt renders the listing as the context block sent with every question.
func BuildListingPrompt(l model.Listing) string {
	var b strings.Builder
	b.WriteString("Listing data:\n")
	fmt.Fprintf(&b, "Title: %s\n", l.Title)
	fmt.Fprintf(&b, "Location: %s\n", l.Location)
	fmt.Fprintf(&b, "Monthly rent: $%.2f\n", l.Rent)
	fmt.Fprintf(&b, "Gender preference: %s\n", l.GenderPreference)
	avail := "from " + l.AvailableFrom.Format(dateLayout)
	if l.AvailableTo != nil {
		avail += " to " + l.AvailableTo.Format(dateLayout)
	}
	fmt.Fprintf(&b, "Available: %s\n", avail)
	fmt.Fprintf(&b, "Photos: %d\n", len(l.Images))
	desc := strings.TrimSpace(l.Description)
	if desc == "" {
		desc = "(none)"
	}
	fmt.Fprintf(&b, "Description: %s", desc)
	return b.String()
}

// CleanAnswer trims model output and caps it at maxRunes.
func CleanAnswer(text string, maxRunes int) string {
	text = strings.TrimSpace(text)
	if maxRunes <= 0 {
		return text
	}
	r := []rune(text)
	if len(r) <= maxRunes {
		return text
	}
	return strings.TrimSpace(string(r[:maxRunes])) + "…"
}
