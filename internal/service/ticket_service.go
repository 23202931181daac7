package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/psds-microservice/support-service/internal/errs"
	"github.com/psds-microservice/support-service/internal/filter"
	"github.com/psds-microservice/support-service/internal/model"
	"github.com/psds-microservice/support-service/internal/policy"
	"github.com/psds-microservice/support-service/internal/store"
)

// TicketServicer: интерфейс для HTTP-слоя (Dependency Inversion).
type TicketServicer interface {
	CreateTicket(ctx context.Context, actor model.Actor, in CreateTicketInput) (model.Ticket, model.Message, error)
	SendMessage(ctx context.Context, actor model.Actor, ticketID string, in SendMessageInput) (model.Message, error)
	UpdateTicket(ctx context.Context, actor model.Actor, ticketID string, patch TicketPatch, expectedVersion uint64) (model.Ticket, error)
	TransferTicket(ctx context.Context, actor model.Actor, ticketID string, in TransferInput) (model.Ticket, error)
	CloseTicket(ctx context.Context, actor model.Actor, ticketID string, in CloseInput) (model.Ticket, error)
	BulkApply(ctx context.Context, actor model.Actor, ticketIDs []string, action BulkAction, value string) ([]model.Ticket, error)
	React(ctx context.Context, actor model.Actor, ticketID, messageID, emoji string) (model.Message, error)

	FilterTickets(actor model.Actor, query string, facets filter.Facets) []model.Ticket
	Ticket(actor model.Actor, ticketID string) (model.Ticket, error)
	Messages(actor model.Actor, ticketID string, lane policy.Lane) ([]model.Message, error)
	Timeline(actor model.Actor, ticketID string) ([]model.TimelineEvent, error)
	Products() []model.Product
	Tags() []string
}

// EventProducer принимает события тикетов (Kafka, RabbitMQ). Доставка best-effort.
type EventProducer interface {
	ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{})
}

// SearchIndexer отправляет тикеты в search-service.
type SearchIndexer interface {
	IndexTicket(ctx context.Context, t model.Ticket)
	IndexTicketAsync(t model.Ticket)
}

// Deps: зависимости сервиса.
type Deps struct {
	Store    *store.Store
	Producer EventProducer
	Search   SearchIndexer
}

type TicketService struct {
	store    *store.Store
	producer EventProducer
	search   SearchIndexer
	// publishTimeout ограничивает одну фоновую доставку события.
	publishTimeout time.Duration
}

func NewTicketService(deps Deps) *TicketService {
	return &TicketService{
		store:          deps.Store,
		producer:       deps.Producer,
		search:         deps.Search,
		publishTimeout: 5 * time.Second,
	}
}

var _ TicketServicer = (*TicketService)(nil)

func displayName(a model.Actor) string {
	if n := strings.TrimSpace(a.Name); n != "" {
		return n
	}
	switch a.Role {
	case model.RoleCS:
		return "Support Agent (CS)"
	case model.RoleSystem:
		return "System"
	default:
		return "Client User"
	}
}

func checkActor(a model.Actor) error {
	if !a.Role.Valid() {
		return errs.Invalid("role", "must be one of client, cs, system")
	}
	return nil
}

// CreateTicket создаёт тикет, первое сообщение и событие "created" одной записью.
func (s *TicketService) CreateTicket(ctx context.Context, actor model.Actor, in CreateTicketInput) (model.Ticket, model.Message, error) {
	if err := checkActor(actor); err != nil {
		return model.Ticket{}, model.Message{}, err
	}
	if err := s.validateCreate(in); err != nil {
		return model.Ticket{}, model.Message{}, err
	}
	name := displayName(actor)
	restaurant := strings.TrimSpace(in.Restaurant)
	if restaurant == "" {
		restaurant = defaultRestaurant
	}
	createdDesc := "Ticket created"
	if in.CreatedViaEmail {
		createdDesc = "Ticket created via email"
	}
	tags := model.NormalizeTags(in.Tags)
	ticket := model.Ticket{
		Subject:         strings.TrimSpace(in.Title),
		Restaurant:      restaurant,
		Product:         in.ProductID,
		Status:          model.TicketStatusOpen,
		ClientStatus:    model.ClientStatusOpenResponsePending,
		Priority:        model.PriorityMedium,
		AssignedTo:      model.Unassigned,
		Unread:          true,
		CreatedViaEmail: in.CreatedViaEmail,
		Tags:            tags,
		Timeline: []model.TimelineEvent{{
			Type:        model.EventCreated,
			Description: createdDesc,
			Actor:       name,
		}},
	}
	first := model.Message{
		Content:     in.Description,
		Sender:      name,
		SenderRole:  actor.Role,
		IsInternal:  false,
		Attachments: toAttachments(in.Attachments),
	}
	created, msg, err := s.store.Create(ctx, ticket, first)
	if err != nil {
		return model.Ticket{}, model.Message{}, err
	}
	s.afterTicketWrite("ticket.created", created)
	s.publish("message.created", messageEventPayload(created, msg))
	return created, msg, nil
}

// SendMessage добавляет сообщение в переписку. Внутренние заметки пишут
// только роли, которые могут их читать.
func (s *TicketService) SendMessage(ctx context.Context, actor model.Actor, ticketID string, in SendMessageInput) (model.Message, error) {
	if err := checkActor(actor); err != nil {
		return model.Message{}, err
	}
	if strings.TrimSpace(in.Content) == "" {
		return model.Message{}, errs.Required("content")
	}
	if in.IsInternal && !policy.CanReadInternal(actor.Role) {
		return model.Message{}, errs.Invalid("is_internal", fmt.Sprintf("role %s cannot write internal notes", actor.Role))
	}
	if err := validateAttachments(in.Attachments); err != nil {
		return model.Message{}, err
	}
	if in.ReplyToID != "" {
		// ответ должен ссылаться на видимое отправителю сообщение из той же ленты
		target, err := s.store.Message(ticketID, in.ReplyToID)
		if err != nil {
			return model.Message{}, err
		}
		if target.IsInternal && !policy.CanReadInternal(actor.Role) {
			return model.Message{}, errs.ErrMessageNotFound
		}
		if target.IsInternal != in.IsInternal {
			return model.Message{}, errs.Invalid("reply_to_id", "must reference a message in the same lane")
		}
	}
	msg, dup, err := s.store.AppendMessage(ctx, model.Message{
		TicketID:        ticketID,
		Content:         in.Content,
		Sender:          displayName(actor),
		SenderRole:      actor.Role,
		IsInternal:      in.IsInternal,
		Attachments:     toAttachments(in.Attachments),
		ReplyToID:       in.ReplyToID,
		ClientMessageID: in.ClientMessageID,
	})
	if err != nil {
		return model.Message{}, err
	}
	if !dup {
		if t, err := s.store.Ticket(ticketID); err == nil {
			s.publish("message.created", messageEventPayload(t, msg))
		}
	}
	return msg, nil
}

// UpdateTicket меняет разрешённые актору поля и пишет смену статуса и
// исполнителя в timeline.
func (s *TicketService) UpdateTicket(ctx context.Context, actor model.Actor, ticketID string, patch TicketPatch, expectedVersion uint64) (model.Ticket, error) {
	if err := checkActor(actor); err != nil {
		return model.Ticket{}, err
	}
	if err := validatePatch(patch); err != nil {
		return model.Ticket{}, err
	}
	if err := checkEditable(actor.Role, patch.Fields()...); err != nil {
		return model.Ticket{}, err
	}
	if patch.Product != nil {
		if _, ok := s.store.Product(*patch.Product); !ok {
			return model.Ticket{}, errs.Invalid("product", "unknown product")
		}
	}
	name := displayName(actor)
	updated, err := s.store.Update(ctx, ticketID, expectedVersion, func(t *model.Ticket) error {
		applyPatch(t, patch, name)
		return nil
	})
	if err != nil {
		return model.Ticket{}, err
	}
	s.afterTicketWrite("ticket.updated", updated)
	return updated, nil
}

// TransferTicket передаёт тикет другому сотруднику. Заметка сохраняется во
// внутреннем событии transferred.
func (s *TicketService) TransferTicket(ctx context.Context, actor model.Actor, ticketID string, in TransferInput) (model.Ticket, error) {
	if err := checkActor(actor); err != nil {
		return model.Ticket{}, err
	}
	if strings.TrimSpace(in.Team) == "" {
		return model.Ticket{}, errs.Required("team")
	}
	team, ok := teamByID(in.Team)
	if !ok {
		return model.Ticket{}, errs.Invalid("team", "unknown team")
	}
	user := strings.TrimSpace(in.User)
	if user == "" {
		return model.Ticket{}, errs.Required("user")
	}
	note := strings.TrimSpace(in.Note)
	if note == "" {
		return model.Ticket{}, errs.Required("note")
	}
	if err := checkEditable(actor.Role, policy.FieldAssignedTo); err != nil {
		return model.Ticket{}, err
	}
	name := displayName(actor)
	updated, err := s.store.Update(ctx, ticketID, 0, func(t *model.Ticket) error {
		from := t.AssignedTo
		t.AssignedTo = user
		t.Timeline = append(t.Timeline, model.TimelineEvent{
			Type:        model.EventTransferred,
			Description: fmt.Sprintf("Transferred to %s (%s)", user, team.Name),
			Actor:       name,
			Metadata: map[string]string{
				"team": team.ID,
				"note": note,
				"from": from,
			},
		})
		return nil
	})
	if err != nil {
		return model.Ticket{}, err
	}
	s.afterTicketWrite("ticket.transferred", updated)
	return updated, nil
}

// CloseTicket записывает резюме закрытия и закрывает тикет.
func (s *TicketService) CloseTicket(ctx context.Context, actor model.Actor, ticketID string, in CloseInput) (model.Ticket, error) {
	if err := checkActor(actor); err != nil {
		return model.Ticket{}, err
	}
	if strings.TrimSpace(in.ClientSummary) == "" {
		return model.Ticket{}, errs.Required("client_summary")
	}
	if err := checkEditable(actor.Role, policy.FieldStatus, policy.FieldClientStatus); err != nil {
		return model.Ticket{}, err
	}
	name := displayName(actor)
	summary := &model.ClosureSummary{
		ClientSummary:   strings.TrimSpace(in.ClientSummary),
		InternalSummary: strings.TrimSpace(in.InternalSummary),
		ClosedBy:        name,
	}
	updated, err := s.store.Update(ctx, ticketID, 0, func(t *model.Ticket) error {
		if t.IsClosed() {
			return errs.ErrTicketClosed
		}
		closeTicket(t, summary, name)
		return nil
	})
	if err != nil {
		return model.Ticket{}, err
	}
	s.afterTicketWrite("ticket.closed", updated)
	return updated, nil
}

// React переключает реакцию актора на видимое ему сообщение.
func (s *TicketService) React(ctx context.Context, actor model.Actor, ticketID, messageID, emoji string) (model.Message, error) {
	if err := checkActor(actor); err != nil {
		return model.Message{}, err
	}
	if !model.IsReactionEmoji(emoji) {
		return model.Message{}, errs.Invalid("emoji", "unsupported reaction")
	}
	target, err := s.store.Message(ticketID, messageID)
	if err != nil {
		return model.Message{}, err
	}
	if target.IsInternal && !policy.CanReadInternal(actor.Role) {
		return model.Message{}, errs.ErrMessageNotFound
	}
	return s.store.React(ctx, ticketID, messageID, emoji, displayName(actor))
}

// FilterTickets: запрос инбокса, текст плюс фасеты, новые первыми.
func (s *TicketService) FilterTickets(actor model.Actor, query string, facets filter.Facets) []model.Ticket {
	matched := filter.Tickets(s.store.Tickets(), query, facets)
	for i := range matched {
		matched[i] = policy.RedactTicket(matched[i], actor.Role)
	}
	return matched
}

func (s *TicketService) Ticket(actor model.Actor, ticketID string) (model.Ticket, error) {
	t, err := s.store.Ticket(ticketID)
	if err != nil {
		return model.Ticket{}, err
	}
	return policy.RedactTicket(t, actor.Role), nil
}

// Messages возвращает одну ленту переписки в том виде, в каком её видит актор.
func (s *TicketService) Messages(actor model.Actor, ticketID string, lane policy.Lane) ([]model.Message, error) {
	msgs, err := s.store.Messages(ticketID)
	if err != nil {
		return nil, err
	}
	return policy.VisibleMessages(msgs, actor.Role, lane), nil
}

func (s *TicketService) Timeline(actor model.Actor, ticketID string) ([]model.TimelineEvent, error) {
	t, err := s.store.Ticket(ticketID)
	if err != nil {
		return nil, err
	}
	return policy.VisibleTimeline(t.Timeline, actor.Role), nil
}

func (s *TicketService) Products() []model.Product {
	return s.store.Products()
}

func (s *TicketService) Tags() []string {
	return s.store.Tags()
}

// Reindex синхронно отправляет каждый тикет в поток событий и поисковый
// индекс. progress, если задан, вызывается после каждого тикета.
func (s *TicketService) Reindex(ctx context.Context, progress func(done, total int)) int {
	tickets := s.store.Tickets()
	for i, t := range tickets {
		if err := ctx.Err(); err != nil {
			return i
		}
		if s.producer != nil {
			s.producer.ProduceTicketEvent(ctx, "ticket.updated", ticketEventPayload(t))
		}
		if s.search != nil {
			s.search.IndexTicket(ctx, t)
		}
		if progress != nil {
			progress(i+1, len(tickets))
		}
	}
	return len(tickets)
}
