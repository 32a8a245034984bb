package contract

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

type EventKind string

const (
	EventMessage EventKind = "message"
	EventError   EventKind = "error"
)

// Event is one incremental update of a running conversation. Kind selects
// which of Message or Err is set.
type Event struct {
	Kind    EventKind
	Message Message
	Err     error
}

func MessageEvent(msg Message) Event {
	return Event{Kind: EventMessage, Message: msg}
}

func ErrorEvent(err error) Event {
	return Event{Kind: EventError, Err: err}
}

func (e Event) Role() Role {
	if e.Kind != EventMessage {
		return ""
	}
	return e.Message.Role
}

func (e Event) Content() string {
	if e.Kind != EventMessage {
		return ""
	}
	return e.Message.Content
}

// HasText reports whether the event carries message text worth relaying.
func (e Event) HasText() bool {
	return e.Kind == EventMessage && e.Message.Content != ""
}
