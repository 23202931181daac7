package model

import (
	"strings"
	"time"
)

type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "Open"
	TicketStatusClosed TicketStatus = "Closed"
)

// ClientStatus: статус, который видит клиент.
type ClientStatus string

const (
	ClientStatusOpenResponsePending ClientStatus = "Open Response Pending"
	ClientStatusTroubleshooting     ClientStatus = "Troubleshooting"
	ClientStatusAwaitingClient      ClientStatus = "Awaiting Client"
	ClientStatusResolved            ClientStatus = "Resolved"
	ClientStatusClosed              ClientStatus = "Closed"
)

type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Unassigned: исполнитель тикета, который ещё никто не взял.
const Unassigned = "Unassigned"

var (
	TicketStatuses = []TicketStatus{TicketStatusOpen, TicketStatusClosed}
	ClientStatuses = []ClientStatus{
		ClientStatusOpenResponsePending,
		ClientStatusTroubleshooting,
		ClientStatusAwaitingClient,
		ClientStatusResolved,
		ClientStatusClosed,
	}
	Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
)

func (s TicketStatus) Valid() bool {
	for _, v := range TicketStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s ClientStatus) Valid() bool {
	for _, v := range ClientStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if v == p {
			return true
		}
	}
	return false
}

type ClosureSummary struct {
	ClientSummary   string    `json:"client_summary"`
	InternalSummary string    `json:"internal_summary,omitempty"`
	ClosedAt        time.Time `json:"closed_at"`
	ClosedBy        string    `json:"closed_by"`
}

type Ticket struct {
	ID              string          `json:"id"`
	Code            string          `json:"code"`
	Subject         string          `json:"subject"`
	Restaurant      string          `json:"restaurant"`
	Product         string          `json:"product"`
	Status          TicketStatus    `json:"status"`
	ClientStatus    ClientStatus    `json:"client_status"`
	Priority        Priority        `json:"priority"`
	AssignedTo      string          `json:"assigned_to"`
	Unread          bool            `json:"unread"`
	CreatedViaEmail bool            `json:"created_via_email"`
	Tags            []string        `json:"tags"`
	Timeline        []TimelineEvent `json:"timeline"`
	ClosureSummary  *ClosureSummary `json:"closure_summary,omitempty"`
	Version         uint64          `json:"version"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// Clone возвращает глубокую копию; снимки хранилища наружу не отдаются.
func (t Ticket) Clone() Ticket {
	out := t
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	if t.Timeline != nil {
		out.Timeline = make([]TimelineEvent, len(t.Timeline))
		for i, e := range t.Timeline {
			out.Timeline[i] = e.Clone()
		}
	}
	if t.ClosureSummary != nil {
		cs := *t.ClosureSummary
		out.ClosureSummary = &cs
	}
	return out
}

func (t Ticket) IsClosed() bool {
	return t.Status == TicketStatusClosed
}

// HasTag: тег есть у тикета (с учётом регистра).
func (t Ticket) HasTag(tag string) bool {
	for _, v := range t.Tags {
		if v == tag {
			return true
		}
	}
	return false
}

// NormalizeTags обрезает пробелы, убирает пустые и дубли, сохраняя порядок.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}
