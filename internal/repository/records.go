package repository

import (
	"time"

	"github.com/psds-microservice/support-service/internal/model"
)

type ticketRecord struct {
	ID              string                `gorm:"primaryKey"`
	Code            string                `gorm:"type:varchar(32);uniqueIndex;not null"`
	Subject         string                `gorm:"type:varchar(255);not null"`
	Restaurant      string                `gorm:"type:varchar(255);not null"`
	Product         string                `gorm:"type:varchar(64);not null"`
	Status          string                `gorm:"type:varchar(16);index;not null"`
	ClientStatus    string                `gorm:"type:varchar(32);not null"`
	Priority        string                `gorm:"type:varchar(16);not null"`
	AssignedTo      string                `gorm:"type:varchar(255);not null"`
	Unread          bool                  `gorm:"not null"`
	CreatedViaEmail bool                  `gorm:"not null"`
	Tags            []string              `gorm:"type:jsonb;serializer:json"`
	Timeline        []model.TimelineEvent `gorm:"type:jsonb;serializer:json"`
	ClosureSummary  *model.ClosureSummary `gorm:"type:jsonb;serializer:json"`
	Version         uint64                `gorm:"not null"`
	CreatedAt       time.Time             `gorm:"not null"`
	LastUpdated     time.Time             `gorm:"not null"`
}

func (ticketRecord) TableName() string { return "tickets" }

type messageRecord struct {
	// seq задаёт порядок сообщений внутри тикета; заполняется БД.
	Seq             int64                     `gorm:"->"`
	ID              string                    `gorm:"primaryKey"`
	TicketID        string                    `gorm:"index;not null"`
	Content         string                    `gorm:"type:text;not null"`
	Sender          string                    `gorm:"type:varchar(255);not null"`
	SenderRole      string                    `gorm:"type:varchar(16);not null"`
	SentAt          time.Time                 `gorm:"not null"`
	IsInternal      bool                      `gorm:"not null"`
	Attachments     []model.Attachment        `gorm:"type:jsonb;serializer:json"`
	ReplyToID       string                    `gorm:"type:text"`
	ReplyToContent  string                    `gorm:"type:text"`
	Reactions       map[string]model.Reaction `gorm:"type:jsonb;serializer:json"`
	ClientMessageID string                    `gorm:"type:varchar(128)"`
}

func (messageRecord) TableName() string { return "messages" }

func toTicketRecord(t model.Ticket) ticketRecord {
	return ticketRecord{
		ID:              t.ID,
		Code:            t.Code,
		Subject:         t.Subject,
		Restaurant:      t.Restaurant,
		Product:         t.Product,
		Status:          string(t.Status),
		ClientStatus:    string(t.ClientStatus),
		Priority:        string(t.Priority),
		AssignedTo:      t.AssignedTo,
		Unread:          t.Unread,
		CreatedViaEmail: t.CreatedViaEmail,
		Tags:            t.Tags,
		Timeline:        t.Timeline,
		ClosureSummary:  t.ClosureSummary,
		Version:         t.Version,
		CreatedAt:       t.CreatedAt,
		LastUpdated:     t.LastUpdated,
	}
}

func (r ticketRecord) toModel() model.Ticket {
	return model.Ticket{
		ID:              r.ID,
		Code:            r.Code,
		Subject:         r.Subject,
		Restaurant:      r.Restaurant,
		Product:         r.Product,
		Status:          model.TicketStatus(r.Status),
		ClientStatus:    model.ClientStatus(r.ClientStatus),
		Priority:        model.Priority(r.Priority),
		AssignedTo:      r.AssignedTo,
		Unread:          r.Unread,
		CreatedViaEmail: r.CreatedViaEmail,
		Tags:            r.Tags,
		Timeline:        r.Timeline,
		ClosureSummary:  r.ClosureSummary,
		Version:         r.Version,
		CreatedAt:       r.CreatedAt,
		LastUpdated:     r.LastUpdated,
	}
}

func toMessageRecord(m model.Message) messageRecord {
	return messageRecord{
		ID:              m.ID,
		TicketID:        m.TicketID,
		Content:         m.Content,
		Sender:          m.Sender,
		SenderRole:      m.SenderRole.String(),
		SentAt:          m.Timestamp,
		IsInternal:      m.IsInternal,
		Attachments:     m.Attachments,
		ReplyToID:       m.ReplyToID,
		ReplyToContent:  m.ReplyToContent,
		Reactions:       m.Reactions,
		ClientMessageID: m.ClientMessageID,
	}
}

func (r messageRecord) toModel() model.Message {
	role, _ := model.ParseRole(r.SenderRole)
	return model.Message{
		ID:              r.ID,
		TicketID:        r.TicketID,
		Content:         r.Content,
		Sender:          r.Sender,
		SenderRole:      role,
		Timestamp:       r.SentAt,
		IsInternal:      r.IsInternal,
		Attachments:     r.Attachments,
		ReplyToID:       r.ReplyToID,
		ReplyToContent:  r.ReplyToContent,
		Reactions:       r.Reactions,
		ClientMessageID: r.ClientMessageID,
	}
}
