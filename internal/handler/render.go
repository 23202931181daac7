package handler

import (
	"bytes"
	"html"

	"github.com/dustin/go-humanize"
	"github.com/psds-microservice/support-service/internal/model"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldhtml "github.com/yuin/goldmark/renderer/html"
)

// markdown renders message bodies. Raw HTML in messages is not passed through.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
	goldmark.WithRendererOptions(goldhtml.WithHardWraps()),
)

func renderContent(src string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "<p>" + html.EscapeString(src) + "</p>"
	}
	return buf.String()
}

type attachmentResponse struct {
	model.Attachment
	SizeHuman string `json:"size_human"`
}

type messageResponse struct {
	model.Message
	ContentHTML string               `json:"content_html"`
	Attachments []attachmentResponse `json:"attachments,omitempty"`
}

func toMessageResponse(m model.Message) messageResponse {
	out := messageResponse{Message: m, ContentHTML: renderContent(m.Content)}
	for _, a := range m.Attachments {
		size := a.Size
		if size < 0 {
			size = 0
		}
		out.Attachments = append(out.Attachments, attachmentResponse{
			Attachment: a,
			SizeHuman:  humanize.IBytes(uint64(size)),
		})
	}
	return out
}

func toMessageResponses(msgs []model.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}
