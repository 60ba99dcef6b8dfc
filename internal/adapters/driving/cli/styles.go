package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// Colour palette for terminal output.
var (
	colourPrimary   = lipgloss.Color("#7C3AED") // Purple
	colourSecondary = lipgloss.Color("#06B6D4") // Cyan
	colourMuted     = lipgloss.Color("#6C7086") // Medium gray
	colourSuccess   = lipgloss.Color("#A6E3A1") // Green
	colourWarning   = lipgloss.Color("#F9E2AF") // Yellow
	colourError     = lipgloss.Color("#F38BA8") // Red
	colourBorder    = lipgloss.Color("#45475A") // Border gray
)

// answerWidth is the wrap width of the answer box.
const answerWidth = 78

// snippetLength bounds chunk previews in listings.
const snippetLength = 160

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colourPrimary)
	subtitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colourSecondary)
	mutedStyle    = lipgloss.NewStyle().Foreground(colourMuted)
	answerStyle   = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colourBorder).
			Padding(0, 1).
			Width(answerWidth)
)

// statusStyle colours a document status.
func statusStyle(status domain.DocumentStatus) lipgloss.Style {
	switch status {
	case domain.StatusAvailable:
		return lipgloss.NewStyle().Foreground(colourSuccess)
	case domain.StatusError:
		return lipgloss.NewStyle().Foreground(colourError)
	case domain.StatusProcessing:
		return lipgloss.NewStyle().Foreground(colourWarning)
	default:
		return mutedStyle
	}
}

// renderAnswer formats an answer and the chunks it was drawn from.
func renderAnswer(resp *domain.QueryResponse) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Answer"))
	if resp.Cached {
		b.WriteString(" " + mutedStyle.Render("(cached)"))
	}
	b.WriteString("\n")
	b.WriteString(answerStyle.Render(resp.ResponseText))
	b.WriteString("\n")
	if len(resp.RelevantDocuments) > 0 {
		b.WriteString("\n")
		b.WriteString(renderSources(resp.RelevantDocuments, false))
	}
	return b.String()
}

// renderSources lists retrieved chunks. With snippets each entry shows
// the start of the chunk text.
func renderSources(chunks []domain.ChunkWithSimilarity, snippets bool) string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Render("Sources"))
	b.WriteString("\n")
	for i := range chunks {
		fmt.Fprintf(&b, "  [%d] %s %s\n", i+1, chunks[i].DocumentTitle,
			mutedStyle.Render(fmt.Sprintf("(chunk %d, %.2f)", chunks[i].ChunkIndex, chunks[i].Similarity)))
		if snippets {
			fmt.Fprintf(&b, "      %s\n", snippet(chunks[i].Content))
		}
	}
	return b.String()
}

// snippet flattens whitespace and truncates text on a rune boundary.
func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= snippetLength {
		return text
	}
	return string(runes[:snippetLength]) + "..."
}
