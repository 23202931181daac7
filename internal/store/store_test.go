package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/psds-microservice/support-service/internal/errs"
	"github.com/psds-microservice/support-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingPersister struct {
	tickets  []model.Ticket
	messages []model.Message
	err      error
	// msgErr ломает только запись сообщений.
	msgErr error
	calls  int
}

func (p *recordingPersister) SaveTicket(_ context.Context, t model.Ticket) error {
	if p.err != nil {
		return p.err
	}
	p.tickets = append(p.tickets, t)
	return nil
}

func (p *recordingPersister) SaveMessage(_ context.Context, m model.Message) error {
	if p.err != nil {
		return p.err
	}
	if p.msgErr != nil {
		return p.msgErr
	}
	p.messages = append(p.messages, m)
	return nil
}

// SaveTicketWithMessage ведёт себя как транзакция: при ошибке ничего не остаётся.
func (p *recordingPersister) SaveTicketWithMessage(ctx context.Context, t model.Ticket, m model.Message) error {
	p.calls++
	tickets, messages := len(p.tickets), len(p.messages)
	if err := p.SaveTicket(ctx, t); err != nil {
		return err
	}
	if err := p.SaveMessage(ctx, m); err != nil {
		p.tickets, p.messages = p.tickets[:tickets], p.messages[:messages]
		return err
	}
	return nil
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(DefaultSeed(clock.Now()), opts...), clock
}

func openTicket() model.Ticket {
	return model.Ticket{
		Subject:      "POS frozen",
		Restaurant:   "Burger Barn",
		Product:      "pos",
		Status:       model.TicketStatusOpen,
		ClientStatus: model.ClientStatusOpenResponsePending,
		Priority:     model.PriorityMedium,
		AssignedTo:   model.Unassigned,
		Unread:       true,
		Timeline:     []model.TimelineEvent{{Type: model.EventCreated, Description: "Ticket created", Actor: "Client User"}},
	}
}

func TestCreatePrependsAndAssignsIdentity(t *testing.T) {
	s, _ := newTestStore(t)
	before := s.Len()

	tk, msg, err := s.Create(context.Background(), openTicket(), model.Message{
		Content: "Screen won't respond", Sender: "Client User", SenderRole: model.RoleClient,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, tk.ID)
	assert.Regexp(t, model.TicketCodePattern, tk.Code)
	assert.Equal(t, "FBT-2025-00104", tk.Code)
	assert.Equal(t, uint64(1), tk.Version)
	require.Len(t, tk.Timeline, 1)
	assert.NotEmpty(t, tk.Timeline[0].ID)
	assert.Equal(t, tk.ID, msg.TicketID)

	all := s.Tickets()
	assert.Len(t, all, before+1)
	assert.Equal(t, tk.ID, all[0].ID)

	msgs, err := s.Messages(tk.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Screen won't respond", msgs[0].Content)
}

func TestCreateCodesAreUnique(t *testing.T) {
	s, _ := newTestStore(t)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		tk, _, err := s.Create(context.Background(), openTicket(), model.Message{Content: "x", SenderRole: model.RoleClient})
		require.NoError(t, err)
		assert.False(t, seen[tk.Code], tk.Code)
		seen[tk.Code] = true
	}
}

func TestUpdateUnknownTicket(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Update(context.Background(), "nope", 0, func(*model.Ticket) error { return nil })
	assert.ErrorIs(t, err, errs.ErrTicketNotFound)
}

func TestUpdateLeavesOldSnapshotIntact(t *testing.T) {
	s, clock := newTestStore(t)
	before, err := s.Ticket("ticket-4")
	require.NoError(t, err)

	clock.Set(clock.Now().Add(time.Minute))
	after, err := s.Update(context.Background(), "ticket-4", 0, func(tk *model.Ticket) error {
		tk.Priority = model.PriorityCritical
		tk.Tags = append(tk.Tags, "Urgent")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, model.PriorityLow, before.Priority)
	assert.Equal(t, []string{"Training"}, before.Tags)
	assert.Equal(t, model.PriorityCritical, after.Priority)
	assert.Equal(t, before.Version+1, after.Version)
	assert.True(t, after.LastUpdated.After(before.LastUpdated))

	// everything else unchanged
	after.Priority, after.Tags, after.Version, after.LastUpdated = before.Priority, before.Tags, before.Version, before.LastUpdated
	assert.Equal(t, before, after)
}

func TestUpdateVersionConflict(t *testing.T) {
	s, _ := newTestStore(t)
	cur, err := s.Ticket("ticket-1")
	require.NoError(t, err)

	_, err = s.Update(context.Background(), "ticket-1", cur.Version+5, func(*model.Ticket) error { return nil })
	assert.ErrorIs(t, err, errs.ErrVersionConflict)

	_, err = s.Update(context.Background(), "ticket-1", cur.Version, func(*model.Ticket) error { return nil })
	assert.NoError(t, err)
}

func TestUpdateCannotRewriteHistory(t *testing.T) {
	s, _ := newTestStore(t)
	cur, err := s.Ticket("ticket-1")
	require.NoError(t, err)

	got, err := s.Update(context.Background(), "ticket-1", 0, func(tk *model.Ticket) error {
		tk.ID = "other"
		tk.Code = "FBT-1999-00001"
		tk.Timeline = nil
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, cur.ID, got.ID)
	assert.Equal(t, cur.Code, got.Code)
	assert.Equal(t, cur.Timeline, got.Timeline)
}

func TestUpdateMutateErrorKeepsState(t *testing.T) {
	s, _ := newTestStore(t)
	before, _ := s.Ticket("ticket-1")
	boom := errors.New("boom")
	_, err := s.Update(context.Background(), "ticket-1", 0, func(tk *model.Ticket) error {
		tk.Subject = "changed"
		return boom
	})
	assert.ErrorIs(t, err, boom)
	after, _ := s.Ticket("ticket-1")
	assert.Equal(t, before, after)
}

func TestAppendMessage(t *testing.T) {
	s, clock := newTestStore(t)
	before, _ := s.Ticket("ticket-1")
	require.True(t, before.Unread)

	clock.Set(clock.Now().Add(time.Second))
	msg, dup, err := s.AppendMessage(context.Background(), model.Message{
		TicketID: "ticket-1", Content: "On it", Sender: "John Doe (CS)", SenderRole: model.RoleCS,
	})
	require.NoError(t, err)
	assert.False(t, dup)
	assert.NotEmpty(t, msg.ID)

	after, _ := s.Ticket("ticket-1")
	assert.False(t, after.Unread)
	assert.False(t, after.LastUpdated.Before(before.LastUpdated))
	assert.Equal(t, before.Version+1, after.Version)
}

func TestAppendMessageLastUpdatedNeverGoesBack(t *testing.T) {
	s, clock := newTestStore(t)
	before, _ := s.Ticket("ticket-1")

	clock.Set(before.LastUpdated.Add(-time.Hour))
	_, _, err := s.AppendMessage(context.Background(), model.Message{TicketID: "ticket-1", Content: "x", SenderRole: model.RoleClient})
	require.NoError(t, err)

	after, _ := s.Ticket("ticket-1")
	assert.Equal(t, before.LastUpdated, after.LastUpdated)
}

func TestAppendMessageSystemKeepsUnread(t *testing.T) {
	s, _ := newTestStore(t)
	_, _, err := s.AppendMessage(context.Background(), model.Message{TicketID: "ticket-4", Content: "auto-reply", SenderRole: model.RoleSystem})
	require.NoError(t, err)
	tk, _ := s.Ticket("ticket-4")
	assert.True(t, tk.Unread)
}

func TestAppendMessageUnknownTicket(t *testing.T) {
	s, _ := newTestStore(t)
	_, _, err := s.AppendMessage(context.Background(), model.Message{TicketID: "missing", Content: "x"})
	assert.ErrorIs(t, err, errs.ErrTicketNotFound)
}

func TestAppendMessageClosedTicket(t *testing.T) {
	s, _ := newTestStore(t)
	_, _, err := s.AppendMessage(context.Background(), model.Message{TicketID: "ticket-3", Content: "still broken", SenderRole: model.RoleClient})
	assert.ErrorIs(t, err, errs.ErrTicketClosed)

	_, _, err = s.AppendMessage(context.Background(), model.Message{TicketID: "ticket-3", Content: "follow up next week", SenderRole: model.RoleCS, IsInternal: true})
	assert.NoError(t, err)
}

func TestAppendMessageIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	in := model.Message{TicketID: "ticket-2", Content: "screenshot attached", SenderRole: model.RoleClient, ClientMessageID: "req-1"}

	first, dup, err := s.AppendMessage(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, dup)
	second, dup, err := s.AppendMessage(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, first.ID, second.ID)

	msgs, _ := s.Messages("ticket-2")
	count := 0
	for _, m := range msgs {
		if m.ClientMessageID == "req-1" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestAppendMessageReply(t *testing.T) {
	s, _ := newTestStore(t)
	msg, _, err := s.AppendMessage(context.Background(), model.Message{
		TicketID: "ticket-2", Content: "Here it is", SenderRole: model.RoleClient, ReplyToID: "msg-2b",
	})
	require.NoError(t, err)
	assert.Equal(t, "Could you send a screenshot of the integration settings page?", msg.ReplyToContent)

	_, _, err = s.AppendMessage(context.Background(), model.Message{
		TicketID: "ticket-2", Content: "x", SenderRole: model.RoleClient, ReplyToID: "msg-1a",
	})
	assert.ErrorIs(t, err, errs.ErrMessageNotFound)
}

func TestAppendMessageReplyStaysInLane(t *testing.T) {
	s, _ := newTestStore(t)
	before, err := s.Ticket("ticket-1")
	require.NoError(t, err)

	// msg-1b: внутренняя заметка
	_, _, err = s.AppendMessage(context.Background(), model.Message{
		TicketID: "ticket-1", Content: "on it", SenderRole: model.RoleCS, ReplyToID: "msg-1b",
	})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, _, err = s.AppendMessage(context.Background(), model.Message{
		TicketID: "ticket-1", Content: "noted", SenderRole: model.RoleCS, IsInternal: true, ReplyToID: "msg-1a",
	})
	assert.ErrorIs(t, err, errs.ErrValidation)

	after, err := s.Ticket("ticket-1")
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)

	note, _, err := s.AppendMessage(context.Background(), model.Message{
		TicketID: "ticket-1", Content: "check firmware", SenderRole: model.RoleCS, IsInternal: true, ReplyToID: "msg-1b",
	})
	require.NoError(t, err)
	assert.Equal(t, "Customer is on firmware 4.2, known freeze issue.", note.ReplyToContent)
}

func TestReact(t *testing.T) {
	s, _ := newTestStore(t)
	m, err := s.React(context.Background(), "ticket-1", "msg-1c", "👍", "Client User")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Reactions["👍"].Count)

	m, err = s.React(context.Background(), "ticket-1", "msg-1c", "👍", "Client User")
	require.NoError(t, err)
	assert.Empty(t, m.Reactions)

	_, err = s.React(context.Background(), "ticket-1", "nope", "👍", "Client User")
	assert.ErrorIs(t, err, errs.ErrMessageNotFound)
}

func TestPersisterFailureAbortsWrite(t *testing.T) {
	p := &recordingPersister{err: errors.New("db down")}
	s, _ := newTestStore(t, WithPersister(p))
	before := s.Tickets()

	_, _, err := s.Create(context.Background(), openTicket(), model.Message{Content: "x", SenderRole: model.RoleClient})
	assert.Error(t, err)
	_, err = s.AppendTimeline(context.Background(), "ticket-1", model.TimelineEvent{Type: model.EventAssigned})
	assert.Error(t, err)

	assert.Equal(t, before, s.Tickets())
}

func TestPersisterReceivesWrites(t *testing.T) {
	p := &recordingPersister{}
	s, _ := newTestStore(t, WithPersister(p))
	tk, _, err := s.Create(context.Background(), openTicket(), model.Message{Content: "x", SenderRole: model.RoleClient})
	require.NoError(t, err)
	_, _, err = s.AppendMessage(context.Background(), model.Message{TicketID: tk.ID, Content: "y", SenderRole: model.RoleCS})
	require.NoError(t, err)

	assert.Len(t, p.tickets, 2)
	assert.Len(t, p.messages, 2)
	assert.Equal(t, 2, p.calls, "ticket and message go through one call per command")
}

func TestMessageWriteFailureLeavesJournalAndMemoryInSync(t *testing.T) {
	p := &recordingPersister{msgErr: errors.New("db down")}
	s, _ := newTestStore(t, WithPersister(p))
	before := s.Tickets()
	msgsBefore, err := s.Messages("ticket-1")
	require.NoError(t, err)

	_, _, err = s.Create(context.Background(), openTicket(), model.Message{Content: "x", SenderRole: model.RoleClient})
	require.Error(t, err)
	_, _, err = s.AppendMessage(context.Background(), model.Message{TicketID: "ticket-1", Content: "y", SenderRole: model.RoleCS})
	require.Error(t, err)

	assert.Empty(t, p.tickets, "no ticket row without its message")
	assert.Empty(t, p.messages)
	assert.Equal(t, before, s.Tickets())
	msgsAfter, err := s.Messages("ticket-1")
	require.NoError(t, err)
	assert.Equal(t, msgsBefore, msgsAfter)

	// после восстановления запись проходит целиком
	p.msgErr = nil
	tk, first, err := s.Create(context.Background(), openTicket(), model.Message{Content: "x", SenderRole: model.RoleClient})
	require.NoError(t, err)
	require.Len(t, p.tickets, 1)
	require.Len(t, p.messages, 1)
	assert.Equal(t, tk.ID, p.tickets[0].ID)
	assert.Equal(t, first.ID, p.messages[0].ID)
}

func TestCreateFailsWhenCodesExhausted(t *testing.T) {
	clock := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	seed := Seed{Tickets: make([]model.Ticket, 0, model.TicketCodeSpace)}
	for i := 0; i < model.TicketCodeSpace; i++ {
		seed.Tickets = append(seed.Tickets, model.Ticket{
			ID:   model.FormatTicketCode(2025, i),
			Code: model.FormatTicketCode(2025, i),
		})
	}
	s := New(seed, WithClock(func() time.Time { return clock }))

	_, _, err := s.Create(context.Background(), openTicket(), model.Message{Content: "x", SenderRole: model.RoleClient})
	assert.ErrorIs(t, err, ErrCodesExhausted)
	assert.Equal(t, model.TicketCodeSpace, s.Len())
}

func TestConcurrentWritersAndReaders(t *testing.T) {
	s, _ := newTestStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, _, err := s.AppendMessage(context.Background(), model.Message{TicketID: "ticket-1", Content: "ping", SenderRole: model.RoleCS, IsInternal: true})
				assert.NoError(t, err)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				tk, err := s.Ticket("ticket-1")
				assert.NoError(t, err)
				msgs, err := s.Messages("ticket-1")
				assert.NoError(t, err)
				assert.NotEmpty(t, msgs)
				assert.NotZero(t, tk.Version)
			}
		}()
	}
	wg.Wait()

	tk, _ := s.Ticket("ticket-1")
	assert.Equal(t, uint64(3+8*25), tk.Version)
}

func TestSeedDropsOrphanMessages(t *testing.T) {
	s := New(Seed{
		Tickets:  []model.Ticket{{ID: "a"}},
		Messages: []model.Message{{ID: "m1", TicketID: "a"}, {ID: "m2", TicketID: "ghost"}},
	})
	msgs, err := s.Messages("a")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	_, err = s.Messages("ghost")
	assert.ErrorIs(t, err, errs.ErrTicketNotFound)
}
