package domain

// Embed is a rich block attached to an upstream message.
type Embed struct {
	Description string `json:"description"`
}

// Message is an upstream chat message as fetched from a channel.
type Message struct {
	ID              string  `json:"id"`
	Content         string  `json:"content"`
	MentionEveryone bool    `json:"mention_everyone"`
	Embeds          []Embed `json:"embeds"`
	Timestamp       string  `json:"timestamp"`
}

// Texts returns the message content followed by every embed
// description, the order alert text is searched in.
func (m Message) Texts() []string {
	texts := []string{m.Content}
	for _, e := range m.Embeds {
		if e.Description != "" {
			texts = append(texts, e.Description)
		}
	}
	return texts
}
