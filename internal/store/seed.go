package store

import (
	"time"

	"github.com/psds-microservice/support-service/internal/model"
)

var defaultProducts = []model.Product{
	{ID: "pos", Name: "POS System", Description: "Point of sale terminals and checkout", Icon: "🖥️"},
	{ID: "kitchen-display", Name: "Kitchen Display", Description: "Order screens for the kitchen line", Icon: "🍳"},
	{ID: "online-ordering", Name: "Online Ordering", Description: "Web and app ordering channel", Icon: "🛒"},
	{ID: "payments", Name: "Payments", Description: "Card readers, payouts and refunds", Icon: "💳"},
	{ID: "inventory", Name: "Inventory", Description: "Stock levels and supplier orders", Icon: "📦"},
	{ID: "loyalty", Name: "Loyalty", Description: "Rewards, points and promotions", Icon: "⭐"},
}

var defaultTags = []string{
	"Hardware", "Software", "Network", "Billing", "Menu", "Integration", "Training", "Urgent",
}

// DefaultSeed возвращает демо-данные, с которыми сервис стартует без
// журнала. Время отсчитывается от now.
func DefaultSeed(now time.Time) Seed {
	at := func(hoursAgo int) time.Time { return now.Add(-time.Duration(hoursAgo) * time.Hour) }
	year := now.Year()

	tickets := []model.Ticket{
		{
			ID: "ticket-1", Code: model.FormatTicketCode(year, 98), Subject: "POS terminal frozen during lunch rush",
			Restaurant: "Burger Barn", Product: "pos",
			Status: model.TicketStatusOpen, ClientStatus: model.ClientStatusTroubleshooting, Priority: model.PriorityCritical,
			AssignedTo: "John Doe", Unread: true, Tags: []string{"Hardware", "Urgent"},
			Timeline: []model.TimelineEvent{
				{ID: "timeline-1a", Type: model.EventCreated, Description: "Ticket created", Timestamp: at(5), Actor: "Client User"},
				{ID: "timeline-1b", Type: model.EventAssigned, Description: "Assigned to John Doe", Timestamp: at(4), Actor: "System"},
				{ID: "timeline-1c", Type: model.EventStatusChanged, Description: "Status changed to Troubleshooting", Timestamp: at(3), Actor: "John Doe (CS)"},
			},
			Version: 3, CreatedAt: at(5), LastUpdated: at(1),
		},
		{
			ID: "ticket-2", Code: model.FormatTicketCode(year, 97), Subject: "Online orders not reaching kitchen display",
			Restaurant: "Taco Town", Product: "online-ordering",
			Status: model.TicketStatusOpen, ClientStatus: model.ClientStatusAwaitingClient, Priority: model.PriorityHigh,
			AssignedTo: "Alex Chen", Tags: []string{"Integration"},
			Timeline: []model.TimelineEvent{
				{ID: "timeline-2a", Type: model.EventCreated, Description: "Ticket created", Timestamp: at(30), Actor: "Client User"},
				{
					ID: "timeline-2b", Type: model.EventTransferred, Description: "Transferred to Alex Chen", Timestamp: at(26), Actor: "Jane Smith (CS)",
					Metadata: map[string]string{"team": "tech", "note": "Webhook failures on their tenant", "from": "Jane Smith"},
				},
			},
			Version: 2, CreatedAt: at(30), LastUpdated: at(20),
		},
		{
			ID: "ticket-3", Code: model.FormatTicketCode(year, 96), Subject: "Refund not showing on statement",
			Restaurant: "Pizza Palace", Product: "payments",
			Status: model.TicketStatusClosed, ClientStatus: model.ClientStatusResolved, Priority: model.PriorityMedium,
			AssignedTo: "Jane Smith", Tags: []string{"Billing"},
			Timeline: []model.TimelineEvent{
				{ID: "timeline-3a", Type: model.EventCreated, Description: "Ticket created", Timestamp: at(72), Actor: "Client User"},
				{ID: "timeline-3b", Type: model.EventClosed, Description: "Ticket closed", Timestamp: at(48), Actor: "Jane Smith (CS)"},
			},
			ClosureSummary: &model.ClosureSummary{
				ClientSummary:   "The refund was issued and will appear within 5 business days.",
				InternalSummary: "Processor batch delayed; no action needed on our side.",
				ClosedAt:        at(48),
				ClosedBy:        "Jane Smith (CS)",
			},
			Version: 4, CreatedAt: at(72), LastUpdated: at(48),
		},
		{
			ID: "ticket-4", Code: model.FormatTicketCode(year, 95), Subject: "Need training for new staff on inventory counts",
			Restaurant: "Sushi Spot", Product: "inventory",
			Status: model.TicketStatusOpen, ClientStatus: model.ClientStatusOpenResponsePending, Priority: model.PriorityLow,
			AssignedTo: model.Unassigned, Unread: true, CreatedViaEmail: true, Tags: []string{"Training"},
			Timeline: []model.TimelineEvent{
				{ID: "timeline-4a", Type: model.EventCreated, Description: "Ticket created via email", Timestamp: at(2), Actor: "Client User"},
			},
			Version: 1, CreatedAt: at(2), LastUpdated: at(2),
		},
	}

	messages := []model.Message{
		{ID: "msg-1a", TicketID: "ticket-1", Content: "Our main POS terminal froze and won't respond to touch.", Sender: "Client User", SenderRole: model.RoleClient, Timestamp: at(5)},
		{ID: "msg-1b", TicketID: "ticket-1", Content: "Customer is on firmware 4.2, known freeze issue.", Sender: "John Doe (CS)", SenderRole: model.RoleCS, Timestamp: at(3), IsInternal: true},
		{ID: "msg-1c", TicketID: "ticket-1", Content: "Please hold the power button for 10 seconds and tell us what you see.", Sender: "John Doe (CS)", SenderRole: model.RoleCS, Timestamp: at(3)},
		{ID: "msg-1d", TicketID: "ticket-1", Content: "It restarted but froze again after two orders.", Sender: "Client User", SenderRole: model.RoleClient, Timestamp: at(1), ReplyToID: "msg-1c", ReplyToContent: "Please hold the power button for 10 seconds and tell us what you see."},
		{ID: "msg-2a", TicketID: "ticket-2", Content: "Online orders are not appearing on the kitchen screen.", Sender: "Client User", SenderRole: model.RoleClient, Timestamp: at(30)},
		{ID: "msg-2b", TicketID: "ticket-2", Content: "Could you send a screenshot of the integration settings page?", Sender: "Alex Chen (CS)", SenderRole: model.RoleCS, Timestamp: at(20)},
		{ID: "msg-3a", TicketID: "ticket-3", Content: "A refund from last week is missing on our statement.", Sender: "Client User", SenderRole: model.RoleClient, Timestamp: at(72)},
		{ID: "msg-3b", TicketID: "ticket-3", Content: "Ticket was closed.", Sender: "System", SenderRole: model.RoleSystem, Timestamp: at(48)},
		{ID: "msg-4a", TicketID: "ticket-4", Content: "We have three new hires who need to learn inventory counts.", Sender: "Client User", SenderRole: model.RoleClient, Timestamp: at(2)},
	}

	return Seed{
		Products: append([]model.Product(nil), defaultProducts...),
		Tags:     append([]string(nil), defaultTags...),
		Tickets:  tickets,
		Messages: messages,
	}
}

// Catalogue возвращает продукты и теги без тикетов.
func Catalogue() Seed {
	return Seed{
		Products: append([]model.Product(nil), defaultProducts...),
		Tags:     append([]string(nil), defaultTags...),
	}
}
