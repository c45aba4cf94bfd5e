// Package admin implements the administrator command surface: plain CRUD
// over the enrollment directory plus a couple of platform lookups. Commands
// are honored only from allow-listed identities in private chats; the
// router enforces the allow-list, this service enforces the chat kind.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"gatebot/internal/audit"
	"gatebot/internal/directory"
	"gatebot/internal/telegram"
)

const usage = `Supported commands:
/help - show this text
/add <full name> - add an enrollment record
/addid <full name> <identity> - manually bind an identity to a record
/forget <full name> - clear the identity bound to a record
/remove <full name> - delete a record
/dump - export the directory as CSV messages
/resolve <identity> - resolve an identity to a username`

const msgTechnical = "Technical error. Please try again later."

// csvChunkLines keeps /dump replies under the platform message size limit.
const csvChunkLines = 20

type Service struct {
	store  directory.Store
	client telegram.Client
	trail  *audit.Trail
	logger *slog.Logger
}

type Option func(*Service)

func WithAuditTrail(trail *audit.Trail) Option {
	return func(s *Service) {
		s.trail = trail
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store directory.Store, client telegram.Client, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("directory store is required")
	}
	if client == nil {
		return nil, errors.New("platform client is required")
	}
	s := &Service{
		store:  store,
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handle processes one administrator command event.
func (s *Service) Handle(ctx context.Context, event telegram.Event) error {
	if event.Chat.Type != telegram.ChatPrivate {
		return nil
	}

	command, args := parseCommand(event.Text)
	switch command {
	case "help", "start":
		return s.reply(ctx, event, usage)
	case "add":
		return s.handleAdd(ctx, event, args)
	case "addid":
		return s.handleAddID(ctx, event, args)
	case "forget":
		return s.handleForget(ctx, event, args)
	case "remove":
		return s.handleRemove(ctx, event, args)
	case "dump":
		return s.handleDump(ctx, event)
	case "resolve":
		return s.handleResolve(ctx, event, args)
	default:
		return s.reply(ctx, event, usage)
	}
}

// parseCommand splits "/addid@bot Ivanov Ivan 42" into ("addid",
// "Ivanov Ivan 42").
func parseCommand(text string) (command, args string) {
	text = strings.TrimSpace(text)
	rest := ""
	if idx := strings.IndexAny(text, " \t\n"); idx >= 0 {
		rest = strings.TrimSpace(text[idx+1:])
		text = text[:idx]
	}
	command = strings.TrimPrefix(text, "/")
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}
	return strings.ToLower(command), rest
}

func (s *Service) handleAdd(ctx context.Context, event telegram.Event, args string) error {
	name := directory.NormalizeName(args)
	if name == "" {
		return s.reply(ctx, event, "Usage: /add <full name>")
	}

	if _, err := s.store.Insert(ctx, directory.Record{FullName: name}); err != nil {
		if errors.Is(err, directory.ErrDuplicateName) {
			return s.reply(ctx, event, fmt.Sprintf("%s is already enrolled", name))
		}
		return s.fail(ctx, event, fmt.Errorf("add record %q: %w", name, err))
	}
	s.trail.Emit(audit.ActionRecordAdded, "", name, "admin command")
	return s.reply(ctx, event, fmt.Sprintf("Added %s", name))
}

func (s *Service) handleAddID(ctx context.Context, event telegram.Event, args string) error {
	args = directory.NormalizeName(args)
	idx := strings.LastIndex(args, " ")
	if idx < 0 {
		return s.reply(ctx, event, "Usage: /addid <full name> <identity>")
	}
	name, identity := args[:idx], args[idx+1:]

	// Manual bind overrides whatever binding exists, so clear it first; the
	// atomic bind-if-unbound is for candidates, not administrators.
	err := s.store.Unbind(ctx, name)
	if errors.Is(err, directory.ErrNotFound) {
		return s.reply(ctx, event, fmt.Sprintf("No enrollment record named %s", name))
	}
	if err != nil {
		return s.fail(ctx, event, fmt.Errorf("unbind %q: %w", name, err))
	}
	if err := s.store.Bind(ctx, name, identity); err != nil {
		return s.fail(ctx, event, fmt.Errorf("bind %q to %s: %w", name, identity, err))
	}
	return s.reply(ctx, event, fmt.Sprintf("Bound %s to %s", name, identity))
}

func (s *Service) handleForget(ctx context.Context, event telegram.Event, args string) error {
	name := directory.NormalizeName(args)
	if name == "" {
		return s.reply(ctx, event, "Usage: /forget <full name>")
	}

	err := s.store.Unbind(ctx, name)
	if errors.Is(err, directory.ErrNotFound) {
		return s.reply(ctx, event, fmt.Sprintf("No enrollment record named %s", name))
	}
	if err != nil {
		return s.fail(ctx, event, fmt.Errorf("forget %q: %w", name, err))
	}
	return s.reply(ctx, event, fmt.Sprintf("Forgot the identity bound to %s", name))
}

func (s *Service) handleRemove(ctx context.Context, event telegram.Event, args string) error {
	name := directory.NormalizeName(args)
	if name == "" {
		return s.reply(ctx, event, "Usage: /remove <full name>")
	}

	err := s.store.Delete(ctx, name)
	if errors.Is(err, directory.ErrNotFound) {
		return s.reply(ctx, event, fmt.Sprintf("No enrollment record named %s", name))
	}
	if err != nil {
		return s.fail(ctx, event, fmt.Errorf("remove %q: %w", name, err))
	}
	s.trail.Emit(audit.ActionRecordRemoved, "", name, "admin command")
	return s.reply(ctx, event, fmt.Sprintf("Removed %s", name))
}

func (s *Service) handleDump(ctx context.Context, event telegram.Event) error {
	records, err := s.store.ListAll(ctx)
	if err != nil {
		return s.fail(ctx, event, fmt.Errorf("list records: %w", err))
	}
	if len(records) == 0 {
		return s.reply(ctx, event, "The directory is empty")
	}

	var chunk strings.Builder
	lines := 0
	for _, rec := range records {
		fmt.Fprintf(&chunk, "%s,%s,%s\n", rec.FullName, rec.PhoneSuffix, rec.BoundIdentity)
		lines++
		if lines == csvChunkLines {
			if err := s.reply(ctx, event, chunk.String()); err != nil {
				return err
			}
			chunk.Reset()
			lines = 0
		}
	}
	if chunk.Len() > 0 {
		return s.reply(ctx, event, chunk.String())
	}
	return nil
}

func (s *Service) handleResolve(ctx context.Context, event telegram.Event, args string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		return s.reply(ctx, event, "Usage: /resolve <identity>")
	}

	profile, err := s.client.GetChat(ctx, id)
	if err != nil {
		return s.fail(ctx, event, fmt.Errorf("resolve %d: %w", id, err))
	}
	username := profile.Username
	if username == "" {
		username = "unknown"
	}
	return s.reply(ctx, event, username)
}

func (s *Service) reply(ctx context.Context, event telegram.Event, text string) error {
	if err := s.client.SendMessage(ctx, event.Chat.ID, text); err != nil {
		return fmt.Errorf("reply in chat %d: %w", event.Chat.ID, err)
	}
	return nil
}

// fail logs the underlying error and sends a generic reply; details never
// reach the chat.
func (s *Service) fail(ctx context.Context, event telegram.Event, err error) error {
	s.logger.Error("admin command failed", "error", err)
	if sendErr := s.reply(ctx, event, msgTechnical); sendErr != nil {
		s.logger.Error("send admin error reply failed", "error", sendErr)
	}
	return err
}
