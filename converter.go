package domkit

// Converter converts HTML fragments to Markdown.
type Converter interface {
	// Convert transforms inner markup of an element into Markdown.
	// Empty input converts to an empty string.
	Convert(html string) (string, error)
}
