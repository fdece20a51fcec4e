package chat

// Role identifies the author of a chat turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the three accepted values.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is a single message in a conversation. Turns are transient: they only
// exist for the duration of one request/response cycle.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Metadata carries optional client-supplied request metadata.
type Metadata struct {
	DisplayName string `json:"displayName,omitempty"`
}

// Payload is the inbound chat request body.
type Payload struct {
	Messages []Turn    `json:"messages"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// SourceCitation is opaque pass-through citation data extracted from the
// upstream stream. It is not validated beyond shape.
type SourceCitation struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Snippet    string `json:"snippet,omitempty"`
	SourceType string `json:"sourceType,omitempty"`
}
