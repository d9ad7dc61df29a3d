package notes

import (
	"slices"
	"strings"
)

// DefaultStyle is applied when the requested style is empty or unknown.
const DefaultStyle = "formal"

// Style is a named rewriting tone.
type Style struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Prompt   string `json:"-"`
}

var styles = map[string]Style{
	"formal":   {Category: "Professional", Prompt: "Rewrite the text in a formal, professional tone without contractions"},
	"business": {Category: "Professional", Prompt: "Rewrite the text for a business audience, focused on outcomes and next actions"},
	"academic": {Category: "Professional", Prompt: "Rewrite the text in an objective academic register with precise wording"},
	"technical": {
		Category: "Professional",
		Prompt:   "Rewrite the text in a technical style for an expert reader, using exact terminology",
	},

	"casual":   {Category: "Conversational", Prompt: "Rewrite the text in a relaxed, casual tone as if talking to a friend"},
	"friendly": {Category: "Conversational", Prompt: "Rewrite the text in a warm and welcoming tone"},
	"simple":   {Category: "Conversational", Prompt: "Rewrite the text in plain language with short sentences and common words"},

	"creative":     {Category: "Creative", Prompt: "Rewrite the text in an expressive style with vivid language"},
	"poetic":       {Category: "Creative", Prompt: "Rewrite the text in a lyrical style using imagery and rhythm"},
	"storytelling": {Category: "Creative", Prompt: "Rewrite the text as a short narrative with a clear arc"},
	"humorous":     {Category: "Creative", Prompt: "Rewrite the text with light humor while keeping the message intact"},

	"persuasive":   {Category: "Persuasive", Prompt: "Rewrite the text to persuade the reader and end with a call to action"},
	"motivational": {Category: "Persuasive", Prompt: "Rewrite the text in an encouraging, motivational tone"},
	"sales":        {Category: "Persuasive", Prompt: "Rewrite the text as a sales pitch that highlights benefits"},

	"journalistic": {Category: "Content", Prompt: "Rewrite the text as a news piece that leads with the key facts"},
	"social":       {Category: "Content", Prompt: "Rewrite the text as a short, shareable social media post"},
	"seo":          {Category: "Content", Prompt: "Rewrite the text for search engines with clear structure and natural keywords"},
}

// LookupStyle resolves name case-insensitively, falling back to
// DefaultStyle.
func LookupStyle(name string) Style {
	key := strings.ToLower(strings.TrimSpace(name))

	s, ok := styles[key]
	if !ok {
		key = DefaultStyle
		s = styles[key]
	}

	s.Name = key

	return s
}

// Styles returns every style sorted by category then name.
func Styles() []Style {
	out := make([]Style, 0, len(styles))
	for name, s := range styles {
		s.Name = name
		out = append(out, s)
	}

	slices.SortFunc(out, func(a, b Style) int {
		if c := strings.Compare(a.Category, b.Category); c != 0 {
			return c
		}

		return strings.Compare(a.Name, b.Name)
	})

	return out
}
