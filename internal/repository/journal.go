// Package repository ведёт журнал тикетов и сообщений в PostgreSQL, чтобы
// хранилище в памяти можно было восстановить после перезапуска.
package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/psds-microservice/support-service/internal/model"
	"github.com/psds-microservice/support-service/internal/store"
)

// Journal реализует store.Persister поверх gorm.
type Journal struct {
	db *gorm.DB
}

// NewJournal создаёт журнал поверх переданного gorm DB.
func NewJournal(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

var _ store.Persister = (*Journal)(nil)

// SaveTicket делает upsert всей строки тикета.
func (j *Journal) SaveTicket(ctx context.Context, t model.Ticket) error {
	rec := toTicketRecord(t)
	err := j.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
	return errors.Wrapf(err, "save ticket %s", t.ID)
}

// SaveMessage делает upsert сообщения; после первой записи меняются только реакции.
func (j *Journal) SaveMessage(ctx context.Context, m model.Message) error {
	rec := toMessageRecord(m)
	err := j.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"reactions"}),
		}).
		Create(&rec).Error
	return errors.Wrapf(err, "save message %s", m.ID)
}

// SaveTicketWithMessage пишет тикет и сообщение в одной транзакции:
// либо обе строки, либо ни одной.
func (j *Journal) SaveTicketWithMessage(ctx context.Context, t model.Ticket, m model.Message) error {
	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txj := &Journal{db: tx}
		if err := txj.SaveTicket(ctx, t); err != nil {
			return err
		}
		return txj.SaveMessage(ctx, m)
	})
}

// Count возвращает число тикетов в журнале.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	var n int64
	err := j.db.WithContext(ctx).Model(&ticketRecord{}).Count(&n).Error
	return n, errors.WithStack(err)
}

// LoadAll читает все тикеты (новые первыми) и сообщения (в порядке отправки)
// в seed вместе со статическим каталогом.
func (j *Journal) LoadAll(ctx context.Context) (store.Seed, error) {
	seed := store.Catalogue()

	var tickets []ticketRecord
	if err := j.db.WithContext(ctx).Order("created_at desc").Find(&tickets).Error; err != nil {
		return store.Seed{}, errors.WithStack(err)
	}
	var messages []messageRecord
	if err := j.db.WithContext(ctx).Order("ticket_id, seq").Find(&messages).Error; err != nil {
		return store.Seed{}, errors.WithStack(err)
	}

	seed.Tickets = make([]model.Ticket, 0, len(tickets))
	for _, r := range tickets {
		seed.Tickets = append(seed.Tickets, r.toModel())
	}
	seed.Messages = make([]model.Message, 0, len(messages))
	for _, r := range messages {
		seed.Messages = append(seed.Messages, r.toModel())
	}
	return seed, nil
}

// Import пишет весь seed одной транзакцией. Используется командой seed.
func (j *Journal) Import(ctx context.Context, seed store.Seed) error {
	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txj := &Journal{db: tx}
		for _, t := range seed.Tickets {
			if err := txj.SaveTicket(ctx, t); err != nil {
				return err
			}
		}
		for _, m := range seed.Messages {
			if err := txj.SaveMessage(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
}
