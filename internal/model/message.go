package model

import (
	"sort"
	"strings"
	"time"
)

// MaxAttachmentSize: лимит на одно вложение (10 MiB).
const MaxAttachmentSize int64 = 10 * 1024 * 1024

type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentVideo    AttachmentKind = "video"
	AttachmentDocument AttachmentKind = "document"
)

// KindFromMIME определяет тип вложения по префиксу MIME.
func KindFromMIME(mime string) AttachmentKind {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch {
	case strings.HasPrefix(mime, "image/"):
		return AttachmentImage
	case strings.HasPrefix(mime, "video/"):
		return AttachmentVideo
	default:
		return AttachmentDocument
	}
}

type Attachment struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       AttachmentKind `json:"type"`
	URL        string         `json:"url"`
	Size       int64          `json:"size"`
	UploadedAt time.Time      `json:"uploaded_at"`
}

type Reaction struct {
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// ReactionEmojis: допустимые реакции на сообщение.
var ReactionEmojis = []string{"👍", "❤️", "😂", "😮", "😢", "🔥", "🚀", "✨"}

func IsReactionEmoji(emoji string) bool {
	for _, e := range ReactionEmojis {
		if e == emoji {
			return true
		}
	}
	return false
}

type Message struct {
	ID              string              `json:"id"`
	TicketID        string              `json:"ticket_id"`
	Content         string              `json:"content"`
	Sender          string              `json:"sender"`
	SenderRole      Role                `json:"sender_role"`
	Timestamp       time.Time           `json:"timestamp"`
	IsInternal      bool                `json:"is_internal"`
	Attachments     []Attachment        `json:"attachments,omitempty"`
	ReplyToID       string              `json:"reply_to_id,omitempty"`
	ReplyToContent  string              `json:"reply_to_content,omitempty"`
	Reactions       map[string]Reaction `json:"reactions,omitempty"`
	ClientMessageID string              `json:"client_message_id,omitempty"`
}

func (m Message) Clone() Message {
	out := m
	if m.Attachments != nil {
		out.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	if m.Reactions != nil {
		out.Reactions = make(map[string]Reaction, len(m.Reactions))
		for k, r := range m.Reactions {
			out.Reactions[k] = Reaction{Count: r.Count, Users: append([]string(nil), r.Users...)}
		}
	}
	return out
}

// ToggleReaction добавляет пользователя к реакции или убирает, если он уже
// там. Count всегда равен числу пользователей.
func (m *Message) ToggleReaction(emoji, user string) {
	if m.Reactions == nil {
		m.Reactions = make(map[string]Reaction)
	}
	r := m.Reactions[emoji]
	users := make([]string, 0, len(r.Users)+1)
	removed := false
	for _, u := range r.Users {
		if u == user {
			removed = true
			continue
		}
		users = append(users, u)
	}
	if !removed {
		users = append(users, user)
	}
	if len(users) == 0 {
		delete(m.Reactions, emoji)
		if len(m.Reactions) == 0 {
			m.Reactions = nil
		}
		return
	}
	sort.Strings(users)
	m.Reactions[emoji] = Reaction{Count: len(users), Users: users}
}
