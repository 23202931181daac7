package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-service/internal/errs"
	"github.com/psds-microservice/support-service/internal/filter"
	"github.com/psds-microservice/support-service/internal/model"
	"github.com/psds-microservice/support-service/internal/policy"
	"github.com/psds-microservice/support-service/internal/service"
)

const (
	HeaderRole           = "X-User-Role"
	HeaderName           = "X-User-Name"
	HeaderIdempotencyKey = "Idempotency-Key"
)

type TicketHandler struct {
	svc service.TicketServicer
	// agentName подставляется для cs, если X-User-Name не передан.
	agentName string
}

func NewTicketHandler(svc service.TicketServicer, agentName string) *TicketHandler {
	return &TicketHandler{svc: svc, agentName: agentName}
}

// actor читает роль и имя из заголовков. Без X-User-Role запрос идёт от клиента.
func (h *TicketHandler) actor(c *gin.Context) (model.Actor, bool) {
	raw := c.GetHeader(HeaderRole)
	role := model.RoleClient
	if strings.TrimSpace(raw) != "" {
		r, ok := model.ParseRole(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + HeaderRole})
			return model.Actor{}, false
		}
		role = r
	}
	name := strings.TrimSpace(c.GetHeader(HeaderName))
	if name == "" && role == model.RoleCS {
		name = h.agentName
	}
	return model.Actor{Name: name, Role: role}, true
}

func writeError(c *gin.Context, err error) {
	var ve *errs.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, errs.ErrFieldNotEditable):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrTicketNotFound), errors.Is(err, errs.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrVersionConflict), errors.Is(err, errs.ErrTicketClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrUnsupportedBulkAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("handler: %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func setETag(c *gin.Context, t model.Ticket) {
	c.Header("ETag", strconv.Quote(strconv.FormatUint(t.Version, 10)))
}

// ifMatch разбирает If-Match: 3, "3" или W/"3". Пустой заголовок означает 0 (без проверки).
func ifMatch(c *gin.Context) (uint64, error) {
	v := strings.TrimSpace(c.GetHeader("If-Match"))
	if v == "" || v == "*" {
		return 0, nil
	}
	v = strings.Trim(strings.TrimPrefix(v, "W/"), `"`)
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil || n == 0 {
		return 0, errs.Invalid("If-Match", "must be a ticket version")
	}
	return n, nil
}

func (h *TicketHandler) Products(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"products": h.svc.Products()})
}

func (h *TicketHandler) Tags(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tags": h.svc.Tags()})
}

func (h *TicketHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	facets := filter.ParseFacets(c.QueryArray("status"), c.QueryArray("client_status"), c.QueryArray("priority"))
	items := h.svc.FilterTickets(actor, c.Query("q"), facets)
	c.JSON(http.StatusOK, gin.H{
		"tickets": items,
		"total":   len(items),
	})
}

type attachmentRequest struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
}

func toAttachmentInputs(in []attachmentRequest) []service.AttachmentInput {
	if len(in) == 0 {
		return nil
	}
	out := make([]service.AttachmentInput, 0, len(in))
	for _, a := range in {
		out = append(out, service.AttachmentInput{Name: a.Name, MIMEType: a.MIMEType, URL: a.URL, Size: a.Size})
	}
	return out
}

type createTicketRequest struct {
	ProductID       string              `json:"product_id"`
	Tags            []string            `json:"tags"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Restaurant      string              `json:"restaurant"`
	Attachments     []attachmentRequest `json:"attachments"`
	CreatedViaEmail bool                `json:"created_via_email"`
}

func (h *TicketHandler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	ticket, msg, err := h.svc.CreateTicket(c.Request.Context(), actor, service.CreateTicketInput{
		ProductID:       req.ProductID,
		Tags:            req.Tags,
		Title:           req.Title,
		Description:     req.Description,
		Restaurant:      req.Restaurant,
		Attachments:     toAttachmentInputs(req.Attachments),
		CreatedViaEmail: req.CreatedViaEmail,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	setETag(c, ticket)
	c.JSON(http.StatusCreated, gin.H{
		"ticket":  ticket,
		"message": toMessageResponse(msg),
	})
}

func (h *TicketHandler) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	t, err := h.svc.Ticket(actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	setETag(c, t)
	c.JSON(http.StatusOK, t)
}

type updateTicketRequest struct {
	Subject      *string   `json:"subject,omitempty"`
	Restaurant   *string   `json:"restaurant,omitempty"`
	Product      *string   `json:"product,omitempty"`
	Status       *string   `json:"status,omitempty"`
	ClientStatus *string   `json:"client_status,omitempty"`
	Priority     *string   `json:"priority,omitempty"`
	AssignedTo   *string   `json:"assigned_to,omitempty"`
	Tags         *[]string `json:"tags,omitempty"`
}

func (r updateTicketRequest) patch() service.TicketPatch {
	p := service.TicketPatch{
		Subject:    r.Subject,
		Restaurant: r.Restaurant,
		Product:    r.Product,
		AssignedTo: r.AssignedTo,
		Tags:       r.Tags,
	}
	if r.Status != nil {
		v := model.TicketStatus(*r.Status)
		p.Status = &v
	}
	if r.ClientStatus != nil {
		v := model.ClientStatus(*r.ClientStatus)
		p.ClientStatus = &v
	}
	if r.Priority != nil {
		v := model.Priority(*r.Priority)
		p.Priority = &v
	}
	return p
}

func (h *TicketHandler) Update(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	version, err := ifMatch(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var req updateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	t, err := h.svc.UpdateTicket(c.Request.Context(), actor, c.Param("id"), req.patch(), version)
	if err != nil {
		writeError(c, err)
		return
	}
	setETag(c, t)
	c.JSON(http.StatusOK, t)
}

type transferRequest struct {
	Team string `json:"team"`
	User string `json:"user"`
	Note string `json:"note"`
}

func (h *TicketHandler) Transfer(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	t, err := h.svc.TransferTicket(c.Request.Context(), actor, c.Param("id"), service.TransferInput{
		Team: req.Team,
		User: req.User,
		Note: req.Note,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	setETag(c, t)
	c.JSON(http.StatusOK, t)
}

type closeRequest struct {
	ClientSummary   string `json:"client_summary"`
	InternalSummary string `json:"internal_summary"`
}

func (h *TicketHandler) Close(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req closeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	t, err := h.svc.CloseTicket(c.Request.Context(), actor, c.Param("id"), service.CloseInput{
		ClientSummary:   req.ClientSummary,
		InternalSummary: req.InternalSummary,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	setETag(c, t)
	c.JSON(http.StatusOK, t)
}

func (h *TicketHandler) Messages(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	lane := policy.ParseLane(c.DefaultQuery("lane", "client"))
	msgs, err := h.svc.Messages(actor, c.Param("id"), lane)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"lane":     lane.String(),
		"messages": toMessageResponses(msgs),
	})
}

type sendMessageRequest struct {
	Content     string              `json:"content"`
	IsInternal  bool                `json:"is_internal"`
	Attachments []attachmentRequest `json:"attachments"`
	ReplyToID   string              `json:"reply_to_id"`
}

func (h *TicketHandler) SendMessage(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	msg, err := h.svc.SendMessage(c.Request.Context(), actor, c.Param("id"), service.SendMessageInput{
		Content:         req.Content,
		IsInternal:      req.IsInternal,
		Attachments:     toAttachmentInputs(req.Attachments),
		ReplyToID:       req.ReplyToID,
		ClientMessageID: strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey)),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMessageResponse(msg))
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

func (h *TicketHandler) React(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	msg, err := h.svc.React(c.Request.Context(), actor, c.Param("id"), c.Param("messageId"), req.Emoji)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toMessageResponse(msg))
}

func (h *TicketHandler) Timeline(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	events, err := h.svc.Timeline(actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timeline": events})
}

type bulkRequest struct {
	TicketIDs []string `json:"ticket_ids"`
	Action    string   `json:"action"`
	Value     string   `json:"value"`
}

func (h *TicketHandler) Bulk(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	action, err := service.ParseBulkAction(req.Action)
	if err != nil {
		writeError(c, err)
		return
	}
	tickets, err := h.svc.BulkApply(c.Request.Context(), actor, req.TicketIDs, action, req.Value)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tickets": tickets,
		"updated": len(tickets),
	})
}
