package gatekeeper

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"gatebot/internal/directory"
	"gatebot/internal/telegram"
)

// fakeClient counts platform calls and lets tests fail kicks per member.
type fakeClient struct {
	mu       sync.Mutex
	kicked   []int64
	unbanned []int64
	kickErrs map[int64]error
}

func newFakeClient() *fakeClient {
	return &fakeClient{kickErrs: make(map[int64]error)}
}

func (c *fakeClient) SendMessage(context.Context, int64, string) error { return nil }

func (c *fakeClient) KickMember(_ context.Context, _ int64, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.kickErrs[userID]; err != nil {
		return err
	}
	c.kicked = append(c.kicked, userID)
	return nil
}

func (c *fakeClient) UnbanMember(_ context.Context, _ int64, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unbanned = append(c.unbanned, userID)
	return nil
}

func (c *fakeClient) GetChat(context.Context, int64) (telegram.Profile, error) {
	return telegram.Profile{}, nil
}

func joinEvent(groupID int64, memberIDs ...int64) telegram.Event {
	ev := telegram.Event{Chat: telegram.Chat{ID: groupID, Type: telegram.ChatSupergroup}}
	for _, id := range memberIDs {
		ev.Joined = append(ev.Joined, telegram.User{ID: id})
	}
	return ev
}

type GatekeeperSuite struct {
	suite.Suite
	store  *directory.InMemoryStore
	client *fakeClient
}

func TestGatekeeperSuite(t *testing.T) {
	suite.Run(t, new(GatekeeperSuite))
}

func (s *GatekeeperSuite) SetupTest() {
	s.store = directory.NewInMemoryStore()
	s.client = newFakeClient()
}

func (s *GatekeeperSuite) newKeeper(opts ...Option) *Gatekeeper {
	keeper, err := New(s.store, s.client, opts...)
	s.Require().NoError(err)
	return keeper
}

func (s *GatekeeperSuite) bindIdentity(name, identity string) {
	ctx := context.Background()
	_, err := s.store.Insert(ctx, directory.Record{FullName: name})
	s.Require().NoError(err)
	s.Require().NoError(s.store.Bind(ctx, name, identity))
}

func (s *GatekeeperSuite) TestVerifiedMemberIsLeftAlone() {
	s.bindIdentity("Ivanov Ivan Ivanovich", "10")
	keeper := s.newKeeper()

	outcomes := keeper.EvaluateJoin(context.Background(), joinEvent(-100, 10))

	s.Require().Len(outcomes, 1)
	s.False(outcomes[0].Evicted)
	s.NoError(outcomes[0].Err)
	s.Empty(s.client.kicked, "no platform calls for a legitimate member")
	s.Empty(s.client.unbanned)
}

func (s *GatekeeperSuite) TestUnverifiedMemberIsEvicted() {
	keeper := s.newKeeper()

	outcomes := keeper.EvaluateJoin(context.Background(), joinEvent(-100, 20))

	s.Require().Len(outcomes, 1)
	s.True(outcomes[0].Evicted)
	s.Equal([]int64{20}, s.client.kicked)
	s.Equal([]int64{20}, s.client.unbanned, "default policy lifts the ban for a later rejoin")
}

func (s *GatekeeperSuite) TestKickOnlyPolicy() {
	keeper := s.newKeeper(WithUnban(false))

	keeper.EvaluateJoin(context.Background(), joinEvent(-100, 20))

	s.Equal([]int64{20}, s.client.kicked)
	s.Empty(s.client.unbanned)
}

// TestBatchIndependence covers the batch with a transient failure in the
// middle: members 1 and 3 must still be evaluated and acted on.
func (s *GatekeeperSuite) TestBatchIndependence() {
	s.client.kickErrs[2] = errors.New("platform timeout")
	keeper := s.newKeeper()

	outcomes := keeper.EvaluateJoin(context.Background(), joinEvent(-100, 1, 2, 3))

	s.Require().Len(outcomes, 3)

	s.True(outcomes[0].Evicted)
	s.NoError(outcomes[0].Err)

	s.False(outcomes[1].Evicted)
	s.Error(outcomes[1].Err)

	s.True(outcomes[2].Evicted)
	s.NoError(outcomes[2].Err)

	s.ElementsMatch([]int64{1, 3}, s.client.kicked)
}

func (s *GatekeeperSuite) TestMixedBatch() {
	s.bindIdentity("Ivanov Ivan Ivanovich", "1")
	keeper := s.newKeeper()

	outcomes := keeper.EvaluateJoin(context.Background(), joinEvent(-100, 1, 2))

	s.Require().Len(outcomes, 2)
	s.False(outcomes[0].Evicted)
	s.True(outcomes[1].Evicted)
	s.Equal([]int64{2}, s.client.kicked)
}

func (s *GatekeeperSuite) TestHandleFoldsFailures() {
	s.client.kickErrs[2] = errors.New("platform timeout")
	keeper := s.newKeeper()

	err := keeper.Handle(context.Background(), joinEvent(-100, 1, 2, 3))

	s.Error(err)
	s.Contains(err.Error(), "member 2")
	s.ElementsMatch([]int64{1, 3}, s.client.kicked)
}

func (s *GatekeeperSuite) TestEmptyBatch() {
	keeper := s.newKeeper()
	s.Empty(keeper.EvaluateJoin(context.Background(), joinEvent(-100)))
}
