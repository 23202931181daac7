package service

import (
	"strings"

	"github.com/psds-microservice/support-service/internal/errs"
	"github.com/psds-microservice/support-service/internal/model"
	"github.com/psds-microservice/support-service/internal/policy"
)

// MaxSubjectLength: лимит длины темы.
const MaxSubjectLength = 100

const defaultRestaurant = "Your Restaurant"

type AttachmentInput struct {
	Name     string
	MIMEType string
	URL      string
	Size     int64
}

type CreateTicketInput struct {
	ProductID       string
	Tags            []string
	Title           string
	Description     string
	Restaurant      string
	Attachments     []AttachmentInput
	CreatedViaEmail bool
}

type SendMessageInput struct {
	Content         string
	IsInternal      bool
	Attachments     []AttachmentInput
	ReplyToID       string
	ClientMessageID string
}

type TransferInput struct {
	Team string
	User string
	Note string
}

type CloseInput struct {
	ClientSummary   string
	InternalSummary string
}

// TicketPatch: поля для изменения; nil значит "не трогать".
type TicketPatch struct {
	Subject      *string
	Restaurant   *string
	Product      *string
	Status       *model.TicketStatus
	ClientStatus *model.ClientStatus
	Priority     *model.Priority
	AssignedTo   *string
	Tags         *[]string
}

// Fields перечисляет затронутые поля.
func (p TicketPatch) Fields() []policy.Field {
	var out []policy.Field
	if p.Subject != nil {
		out = append(out, policy.FieldSubject)
	}
	if p.Restaurant != nil {
		out = append(out, policy.FieldRestaurant)
	}
	if p.Product != nil {
		out = append(out, policy.FieldProduct)
	}
	if p.Status != nil {
		out = append(out, policy.FieldStatus)
	}
	if p.ClientStatus != nil {
		out = append(out, policy.FieldClientStatus)
	}
	if p.Priority != nil {
		out = append(out, policy.FieldPriority)
	}
	if p.AssignedTo != nil {
		out = append(out, policy.FieldAssignedTo)
	}
	if p.Tags != nil {
		out = append(out, policy.FieldTags)
	}
	return out
}

// Team: команда, которой можно передать тикет.
type Team struct {
	ID   string
	Name string
}

// Команды для передачи.
var Teams = []Team{
	{ID: "cs", Name: "Customer Success"},
	{ID: "tech", Name: "Technical Support"},
}

func teamByID(id string) (Team, bool) {
	for _, t := range Teams {
		if t.ID == id {
			return t, true
		}
	}
	return Team{}, false
}

func (s *TicketService) validateCreate(in CreateTicketInput) error {
	if strings.TrimSpace(in.ProductID) == "" {
		return errs.Required("product_id")
	}
	if _, ok := s.store.Product(in.ProductID); !ok {
		return errs.Invalid("product_id", "unknown product")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return errs.Required("title")
	}
	if len([]rune(title)) > MaxSubjectLength {
		return errs.Invalid("title", "must be at most 100 characters")
	}
	if strings.TrimSpace(in.Description) == "" {
		return errs.Required("description")
	}
	return validateAttachments(in.Attachments)
}

func validateAttachments(in []AttachmentInput) error {
	for _, a := range in {
		if strings.TrimSpace(a.Name) == "" {
			return errs.Required("attachments.name")
		}
		if a.Size < 0 {
			return errs.Invalid("attachments.size", "must not be negative")
		}
		if a.Size > model.MaxAttachmentSize {
			return errs.Invalid("attachments.size", a.Name+" is larger than 10MB")
		}
	}
	return nil
}

func toAttachments(in []AttachmentInput) []model.Attachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.Attachment, 0, len(in))
	for _, a := range in {
		out = append(out, model.Attachment{
			Name: strings.TrimSpace(a.Name),
			Type: model.KindFromMIME(a.MIMEType),
			URL:  a.URL,
			Size: a.Size,
		})
	}
	return out
}

func validatePatch(p TicketPatch) error {
	if len(p.Fields()) == 0 {
		return errs.Invalid("patch", "no changes provided")
	}
	if p.Subject != nil {
		subject := strings.TrimSpace(*p.Subject)
		if subject == "" {
			return errs.Required("subject")
		}
		if len([]rune(subject)) > MaxSubjectLength {
			return errs.Invalid("subject", "must be at most 100 characters")
		}
	}
	if p.Status != nil && !p.Status.Valid() {
		return errs.Invalid("status", "must be one of Open, Closed")
	}
	if p.ClientStatus != nil && !p.ClientStatus.Valid() {
		return errs.Invalid("client_status", "unknown client status")
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return errs.Invalid("priority", "must be one of Low, Medium, High, Critical")
	}
	if p.AssignedTo != nil && strings.TrimSpace(*p.AssignedTo) == "" {
		return errs.Required("assigned_to")
	}
	return nil
}
