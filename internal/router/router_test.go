package router

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"gatebot/internal/telegram"
)

const (
	groupID = int64(-1001)
	adminID = int64(100)
)

type recordingHandler struct {
	mu     sync.Mutex
	events []telegram.Event
	err    error
}

func (h *recordingHandler) Handle(_ context.Context, event telegram.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func event(chat telegram.Chat, sender int64, text string, joined ...int64) telegram.Event {
	ev := telegram.Event{
		Chat:    chat,
		Sender:  telegram.User{ID: sender},
		Text:    text,
		HasText: text != "",
	}
	for _, id := range joined {
		ev.Joined = append(ev.Joined, telegram.User{ID: id})
	}
	return ev
}

var (
	privateChat = telegram.Chat{ID: 7, Type: telegram.ChatPrivate}
	groupChat   = telegram.Chat{ID: groupID, Type: telegram.ChatSupergroup}
	otherChat   = telegram.Chat{ID: -555, Type: telegram.ChatGroup}
)

type RouterSuite struct {
	suite.Suite
	router *Router
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.router = New(groupID, []int64{adminID})
}

func (s *RouterSuite) TestClassify() {
	cases := []struct {
		name  string
		event telegram.Event
		want  Route
	}{
		{"admin command in private chat", event(privateChat, adminID, "/add Ivanov Ivan"), RouteAdminCommand},
		{"admin command in the group", event(groupChat, adminID, "/dump"), RouteAdminCommand},
		{"command from a non-admin falls through to dialogue", event(privateChat, 7, "/start"), RoutePrivateDialogue},
		{"plain private message", event(privateChat, 7, "Ivanov Ivan Ivanovich 5411"), RoutePrivateDialogue},
		{"non-text private message", event(privateChat, 7, ""), RoutePrivateDialogue},
		{"join event in the monitored group", event(groupChat, 7, "", 1, 2), RouteGroupJoin},
		{"join event in another group", event(otherChat, 7, "", 1), RouteIgnored},
		{"plain message in the monitored group", event(groupChat, 7, "hello"), RouteIgnored},
		{"command from a non-admin in the group", event(groupChat, 7, "/dump"), RouteIgnored},
		{"admin plain text goes to dialogue, not the command surface", event(privateChat, adminID, "hello"), RoutePrivateDialogue},
		{"slash alone is not a command", event(groupChat, adminID, "/"), RouteIgnored},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.Equal(tc.want, s.router.Classify(tc.event))
		})
	}
}

func (s *RouterSuite) TestDispatch() {
	admin := &recordingHandler{}
	dialogue := &recordingHandler{}
	join := &recordingHandler{}
	s.router.Register(RouteAdminCommand, admin)
	s.router.Register(RoutePrivateDialogue, dialogue)
	s.router.Register(RouteGroupJoin, join)

	ctx := context.Background()
	s.router.Dispatch(ctx, event(privateChat, adminID, "/dump"))
	s.router.Dispatch(ctx, event(privateChat, 7, "hello"))
	s.router.Dispatch(ctx, event(groupChat, 7, "", 1))
	s.router.Dispatch(ctx, event(otherChat, 7, "noise"))
	s.router.Wait()

	s.Equal(1, admin.count())
	s.Equal(1, dialogue.count())
	s.Equal(1, join.count())
}

func (s *RouterSuite) TestHandlerFailureDoesNotStopDispatch() {
	failing := &recordingHandler{err: errors.New("downstream broke")}
	s.router.Register(RoutePrivateDialogue, failing)

	ctx := context.Background()
	s.router.Dispatch(ctx, event(privateChat, 7, "one"))
	s.router.Dispatch(ctx, event(privateChat, 7, "two"))
	s.router.Wait()

	s.Equal(2, failing.count(), "a handler error must not terminate event processing")
}

func (s *RouterSuite) TestHandlerPanicIsRecovered() {
	s.router.Register(RoutePrivateDialogue, HandlerFunc(func(context.Context, telegram.Event) error {
		panic("handler bug")
	}))

	s.NotPanics(func() {
		s.router.Dispatch(context.Background(), event(privateChat, 7, "boom"))
		s.router.Wait()
	})
}

func (s *RouterSuite) TestUnregisteredRouteIsSkipped() {
	s.NotPanics(func() {
		s.router.Dispatch(context.Background(), event(privateChat, 7, "hello"))
		s.router.Wait()
	})
}
