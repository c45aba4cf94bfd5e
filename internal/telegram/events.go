package telegram

// ChatType mirrors the platform's chat kinds that matter for routing.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
)

// User is a chat-platform identity.
type User struct {
	ID        int64
	Username  string
	FirstName string
}

// Chat identifies the conversation an event happened in.
type Chat struct {
	ID   int64
	Type ChatType
}

// Event is the normalized form of one inbound update. It is produced once
// per update and classified by the router; handlers never see raw platform
// types.
type Event struct {
	Chat   Chat
	Sender User
	// Text is the message text; HasText distinguishes an empty text message
	// from stickers, photos and other non-text content.
	Text    string
	HasText bool
	// Joined carries the newly joined members for membership events.
	Joined []User
}

// IsCommand reports whether the event is a slash command.
func (e Event) IsCommand() bool {
	return e.HasText && len(e.Text) > 1 && e.Text[0] == '/'
}

// Profile is the result of a GetChat lookup.
type Profile struct {
	ID       int64
	Username string
}
