package chat

import "strings"

// EmbedField is a titled block inside an Embed.
type EmbedField struct {
	Name  string
	Value string
}

// Embed is a structured message description.
type Embed struct {
	Title       string
	Description string
	Fields      []EmbedField
	Footer      string
}

// Payload is what the bot sends: plain text, a structured embed, or both.
type Payload struct {
	Text  string
	Embed *Embed
}

// Text builds a plain-text payload.
func Text(s string) Payload {
	return Payload{Text: s}
}

// IsZero reports whether the payload carries no content at all.
func (p Payload) IsZero() bool {
	return p.Text == "" && p.Embed == nil
}

// String renders the payload as plain text. Platforms without rich
// messages use this form.
func (p Payload) String() string {
	var b strings.Builder
	if p.Text != "" {
		b.WriteString(p.Text)
	}
	if e := p.Embed; e != nil {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		if e.Title != "" {
			b.WriteString("== " + e.Title + " ==\n")
		}
		if e.Description != "" {
			b.WriteString(e.Description)
			b.WriteString("\n")
		}
		for _, f := range e.Fields {
			b.WriteString(f.Name)
			b.WriteString(": ")
			b.WriteString(f.Value)
			b.WriteString("\n")
		}
		if e.Footer != "" {
			b.WriteString("-- " + e.Footer + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Message is a handle to a message the platform accepted.
type Message struct {
	ID        MessageID
	ChannelID ChannelID
	Payload   Payload
}
