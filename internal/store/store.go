// Package store хранит тикеты и их сообщения в памяти.
//
// Каждая запись строит новый неизменяемый снимок и публикует его атомарно:
// читатели не блокируются и не видят частично применённую команду. Писатели
// сериализуются одним мьютексом.
package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/psds-microservice/support-service/internal/errs"
	"github.com/psds-microservice/support-service/internal/model"
)

// Persister получает каждую запись до публикации нового снимка. Ошибка
// Persister отменяет запись. SaveTicketWithMessage обязан сохранить обе
// строки атомарно.
type Persister interface {
	SaveTicket(ctx context.Context, t model.Ticket) error
	SaveMessage(ctx context.Context, m model.Message) error
	SaveTicketWithMessage(ctx context.Context, t model.Ticket, m model.Message) error
}

// Seed: начальное содержимое хранилища.
type Seed struct {
	Products []model.Product
	Tags     []string
	Tickets  []model.Ticket // новые первыми
	Messages []model.Message
}

type snapshot struct {
	tickets  []model.Ticket
	index    map[string]int
	messages map[string][]model.Message
}

func (s *snapshot) ticket(id string) (model.Ticket, int, bool) {
	i, ok := s.index[id]
	if !ok {
		return model.Ticket{}, -1, false
	}
	return s.tickets[i], i, true
}

// withTicket возвращает копию снимка, где в позиции i лежит t.
func (s *snapshot) withTicket(i int, t model.Ticket) *snapshot {
	tickets := make([]model.Ticket, len(s.tickets))
	copy(tickets, s.tickets)
	tickets[i] = t
	return &snapshot{tickets: tickets, index: s.index, messages: s.messages}
}

// withMessages возвращает копию снимка с заменённым списком сообщений одного тикета.
func (s *snapshot) withMessages(ticketID string, msgs []model.Message) *snapshot {
	messages := make(map[string][]model.Message, len(s.messages)+1)
	for k, v := range s.messages {
		messages[k] = v
	}
	messages[ticketID] = msgs
	return &snapshot{tickets: s.tickets, index: s.index, messages: messages}
}

type Store struct {
	mu      sync.Mutex
	state   atomic.Pointer[snapshot]
	seq     int
	now     func() time.Time
	persist Persister

	products []model.Product
	tags     []string
}

type Option func(*Store)

// WithClock подменяет time.Now, в основном для тестов.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithPersister(p Persister) Option {
	return func(s *Store) { s.persist = p }
}

// New строит хранилище из seed. Сообщения с неизвестным тикетом
// отбрасываются.
func New(seed Seed, opts ...Option) *Store {
	s := &Store{
		now:      time.Now,
		products: append([]model.Product(nil), seed.Products...),
		tags:     append([]string(nil), seed.Tags...),
	}
	for _, opt := range opts {
		opt(s)
	}
	snap := &snapshot{
		tickets:  make([]model.Ticket, 0, len(seed.Tickets)),
		index:    make(map[string]int, len(seed.Tickets)),
		messages: make(map[string][]model.Message),
	}
	for _, t := range seed.Tickets {
		if _, dup := snap.index[t.ID]; dup {
			continue
		}
		snap.index[t.ID] = len(snap.tickets)
		snap.tickets = append(snap.tickets, t.Clone())
	}
	for _, m := range seed.Messages {
		if _, ok := snap.index[m.TicketID]; !ok {
			continue
		}
		snap.messages[m.TicketID] = append(snap.messages[m.TicketID], m.Clone())
	}
	s.seq = len(snap.tickets) + 100
	s.state.Store(snap)
	return s
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// stamp возвращает текущее время, но не раньше prev.
func (s *Store) stamp(prev time.Time) time.Time {
	now := s.now()
	if now.Before(prev) {
		return prev
	}
	return now
}

// ErrCodesExhausted: все пятизначные коды текущего года заняты.
var ErrCodesExhausted = errors.New("ticket codes exhausted for this year")

func (s *Store) nextCode(snap *snapshot, year int) (string, error) {
	taken := make(map[string]struct{}, len(snap.tickets))
	for _, t := range snap.tickets {
		taken[t.Code] = struct{}{}
	}
	for i := 0; i < model.TicketCodeSpace; i++ {
		code := model.FormatTicketCode(year, s.seq)
		s.seq = (s.seq + 1) % model.TicketCodeSpace
		if _, ok := taken[code]; !ok {
			return code, nil
		}
	}
	return "", ErrCodesExhausted
}

// Create сохраняет новый тикет вместе с первым сообщением. Хранилище
// назначает id, код тикета, время и версию; остальное, включая начальный
// timeline, передаёт вызывающий.
func (s *Store) Create(ctx context.Context, t model.Ticket, first model.Message) (model.Ticket, model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.state.Load()
	now := s.now()
	t = t.Clone()
	if t.ID == "" {
		t.ID = newID("ticket")
	}
	if _, _, exists := snap.ticket(t.ID); exists {
		return model.Ticket{}, model.Message{}, errs.Invalid("id", "already exists")
	}
	code, err := s.nextCode(snap, now.Year())
	if err != nil {
		return model.Ticket{}, model.Message{}, err
	}
	t.Code = code
	t.CreatedAt = now
	t.LastUpdated = now
	t.Version = 1
	for i := range t.Timeline {
		if t.Timeline[i].ID == "" {
			t.Timeline[i].ID = newID("timeline")
		}
		if t.Timeline[i].Timestamp.IsZero() {
			t.Timeline[i].Timestamp = now
		}
	}

	first = first.Clone()
	if first.ID == "" {
		first.ID = newID("msg")
	}
	first.TicketID = t.ID
	first.Timestamp = now
	stampAttachments(first.Attachments, now)

	if s.persist != nil {
		if err := s.persist.SaveTicketWithMessage(ctx, t, first); err != nil {
			return model.Ticket{}, model.Message{}, err
		}
	}

	tickets := make([]model.Ticket, 0, len(snap.tickets)+1)
	tickets = append(tickets, t)
	tickets = append(tickets, snap.tickets...)
	index := make(map[string]int, len(tickets))
	for i, tk := range tickets {
		index[tk.ID] = i
	}
	next := &snapshot{tickets: tickets, index: index, messages: snap.messages}
	next = next.withMessages(t.ID, []model.Message{first})
	s.state.Store(next)
	return t.Clone(), first.Clone(), nil
}

func stampAttachments(atts []model.Attachment, now time.Time) {
	for i := range atts {
		if atts[i].ID == "" {
			atts[i].ID = newID("file")
		}
		if atts[i].UploadedAt.IsZero() {
			atts[i].UploadedAt = now
		}
	}
}

// Update применяет mutate к копии тикета и фиксирует результат.
// Ненулевой expectedVersion должен совпадать с текущей версией.
func (s *Store) Update(ctx context.Context, id string, expectedVersion uint64, mutate func(*model.Ticket) error) (model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.state.Load()
	cur, i, ok := snap.ticket(id)
	if !ok {
		return model.Ticket{}, errs.ErrTicketNotFound
	}
	if expectedVersion != 0 && expectedVersion != cur.Version {
		return model.Ticket{}, errs.ErrVersionConflict
	}
	next := cur.Clone()
	if err := mutate(&next); err != nil {
		return model.Ticket{}, err
	}
	// идентичность и история не меняются
	next.ID, next.Code, next.CreatedAt = cur.ID, cur.Code, cur.CreatedAt
	if len(next.Timeline) < len(cur.Timeline) {
		next.Timeline = cur.Clone().Timeline
	}
	now := s.stamp(cur.LastUpdated)
	for j := len(cur.Timeline); j < len(next.Timeline); j++ {
		if next.Timeline[j].ID == "" {
			next.Timeline[j].ID = newID("timeline")
		}
		if next.Timeline[j].Timestamp.IsZero() {
			next.Timeline[j].Timestamp = now
		}
	}
	if next.ClosureSummary != nil && next.ClosureSummary.ClosedAt.IsZero() {
		next.ClosureSummary.ClosedAt = now
	}
	next.LastUpdated = now
	next.Version = cur.Version + 1

	if s.persist != nil {
		if err := s.persist.SaveTicket(ctx, next); err != nil {
			return model.Ticket{}, err
		}
	}
	s.state.Store(snap.withTicket(i, next))
	return next.Clone(), nil
}

// AppendTimeline добавляет событие в конец timeline тикета.
func (s *Store) AppendTimeline(ctx context.Context, id string, ev model.TimelineEvent) (model.Ticket, error) {
	return s.Update(ctx, id, 0, func(t *model.Ticket) error {
		t.Timeline = append(t.Timeline, ev.Clone())
		return nil
	})
}

// AppendMessage сохраняет msg в его тикете. Повтор ClientMessageID уже
// сохранённого сообщения не записывается: возвращается оригинал и
// duplicate=true.
func (s *Store) AppendMessage(ctx context.Context, msg model.Message) (stored model.Message, duplicate bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.state.Load()
	cur, i, ok := snap.ticket(msg.TicketID)
	if !ok {
		return model.Message{}, false, errs.ErrTicketNotFound
	}
	existing := snap.messages[cur.ID]
	if msg.ClientMessageID != "" {
		for _, m := range existing {
			if m.ClientMessageID == msg.ClientMessageID {
				return m.Clone(), true, nil
			}
		}
	}
	if cur.IsClosed() && !msg.IsInternal {
		return model.Message{}, false, errs.ErrTicketClosed
	}

	msg = msg.Clone()
	if msg.ReplyToID != "" {
		target, found := findMessage(existing, msg.ReplyToID)
		if !found {
			return model.Message{}, false, errs.ErrMessageNotFound
		}
		// ответ живёт в той же ленте, что и сообщение, на которое отвечают
		if target.IsInternal != msg.IsInternal {
			return model.Message{}, false, errs.Invalid("reply_to_id", "must reference a message in the same lane")
		}
		msg.ReplyToContent = target.Content
	}
	now := s.stamp(cur.LastUpdated)
	if msg.ID == "" {
		msg.ID = newID("msg")
	}
	msg.Timestamp = now
	stampAttachments(msg.Attachments, now)

	next := cur.Clone()
	next.LastUpdated = now
	next.Version = cur.Version + 1
	if msg.SenderRole.Human() {
		next.Unread = false
	}

	if s.persist != nil {
		if err := s.persist.SaveTicketWithMessage(ctx, next, msg); err != nil {
			return model.Message{}, false, err
		}
	}

	msgs := make([]model.Message, len(existing), len(existing)+1)
	copy(msgs, existing)
	msgs = append(msgs, msg)
	s.state.Store(snap.withTicket(i, next).withMessages(cur.ID, msgs))
	return msg.Clone(), false, nil
}

// React переключает реакцию пользователя на сообщение.
func (s *Store) React(ctx context.Context, ticketID, messageID, emoji, user string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.state.Load()
	if _, _, ok := snap.ticket(ticketID); !ok {
		return model.Message{}, errs.ErrTicketNotFound
	}
	existing := snap.messages[ticketID]
	pos := -1
	for j, m := range existing {
		if m.ID == messageID {
			pos = j
			break
		}
	}
	if pos < 0 {
		return model.Message{}, errs.ErrMessageNotFound
	}
	updated := existing[pos].Clone()
	updated.ToggleReaction(emoji, user)

	if s.persist != nil {
		if err := s.persist.SaveMessage(ctx, updated); err != nil {
			return model.Message{}, err
		}
	}
	msgs := make([]model.Message, len(existing))
	copy(msgs, existing)
	msgs[pos] = updated
	s.state.Store(snap.withMessages(ticketID, msgs))
	return updated.Clone(), nil
}

func findMessage(msgs []model.Message, id string) (model.Message, bool) {
	for _, m := range msgs {
		if m.ID == id {
			return m, true
		}
	}
	return model.Message{}, false
}

// Tickets возвращает все тикеты, новые первыми.
func (s *Store) Tickets() []model.Ticket {
	snap := s.state.Load()
	out := make([]model.Ticket, len(snap.tickets))
	for i, t := range snap.tickets {
		out[i] = t.Clone()
	}
	return out
}

func (s *Store) Ticket(id string) (model.Ticket, error) {
	t, _, ok := s.state.Load().ticket(id)
	if !ok {
		return model.Ticket{}, errs.ErrTicketNotFound
	}
	return t.Clone(), nil
}

// Messages возвращает переписку тикета в порядке отправки, вместе с внутренними заметками.
func (s *Store) Messages(ticketID string) ([]model.Message, error) {
	snap := s.state.Load()
	if _, _, ok := snap.ticket(ticketID); !ok {
		return nil, errs.ErrTicketNotFound
	}
	msgs := snap.messages[ticketID]
	out := make([]model.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out, nil
}

func (s *Store) Message(ticketID, messageID string) (model.Message, error) {
	snap := s.state.Load()
	if _, _, ok := snap.ticket(ticketID); !ok {
		return model.Message{}, errs.ErrTicketNotFound
	}
	m, ok := findMessage(snap.messages[ticketID], messageID)
	if !ok {
		return model.Message{}, errs.ErrMessageNotFound
	}
	return m.Clone(), nil
}

func (s *Store) Products() []model.Product {
	return append([]model.Product(nil), s.products...)
}

func (s *Store) Product(id string) (model.Product, bool) {
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return model.Product{}, false
}

// Tags: каталог тегов, предлагаемых при создании тикета.
func (s *Store) Tags() []string {
	return append([]string(nil), s.tags...)
}

func (s *Store) Len() int {
	return len(s.state.Load().tickets)
}
