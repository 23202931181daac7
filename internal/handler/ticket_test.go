package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-service/internal/service"
	"github.com/psds-microservice/support-service/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	st := store.New(store.DefaultSeed(now), store.WithClock(func() time.Time { return now }))
	h := NewTicketHandler(service.NewTicketService(service.Deps{Store: st}), "Support Agent (CS)")

	r := gin.New()
	r.GET("/health", Health)
	r.GET("/ready", Ready(nil))
	v1 := r.Group("/api/v1")
	v1.GET("/products", h.Products)
	v1.GET("/tags", h.Tags)
	v1.GET("/tickets", h.List)
	v1.POST("/tickets", h.Create)
	v1.POST("/tickets/bulk", h.Bulk)
	v1.GET("/tickets/:id", h.Get)
	v1.PATCH("/tickets/:id", h.Update)
	v1.POST("/tickets/:id/transfer", h.Transfer)
	v1.POST("/tickets/:id/close", h.Close)
	v1.GET("/tickets/:id/messages", h.Messages)
	v1.POST("/tickets/:id/messages", h.SendMessage)
	v1.POST("/tickets/:id/messages/:messageId/reactions", h.React)
	v1.GET("/tickets/:id/timeline", h.Timeline)
	return r
}

func do(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

var asAgent = map[string]string{HeaderRole: "cs", HeaderName: "Jane Smith (CS)"}

func TestHealthAndReady(t *testing.T) {
	r := newTestEngine(t)
	w := do(r, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	w = do(r, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCatalogue(t *testing.T) {
	r := newTestEngine(t)
	w := do(r, http.MethodGet, "/api/v1/products", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["products"], 6)

	w = do(r, http.MethodGet, "/api/v1/tags", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["tags"], "Hardware")
}

func TestCreateTicketEndpoint(t *testing.T) {
	r := newTestEngine(t)
	w := do(r, http.MethodPost, "/api/v1/tickets", map[string]interface{}{
		"product_id":  "pos",
		"title":       "POS frozen",
		"description": "Screen **won't** respond",
		"attachments": []map[string]interface{}{{"name": "photo.jpg", "mime_type": "image/jpeg", "size": 2048}},
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, `"1"`, w.Header().Get("ETag"))

	body := decode(t, w)
	ticket := body["ticket"].(map[string]interface{})
	assert.Equal(t, "Open Response Pending", ticket["client_status"])
	assert.Equal(t, "Medium", ticket["priority"])

	msg := body["message"].(map[string]interface{})
	assert.Equal(t, "client", msg["sender_role"])
	assert.Contains(t, msg["content_html"], "<strong>won't</strong>")
	att := msg["attachments"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "image", att["type"])
	assert.Equal(t, "2.0 KiB", att["size_human"])
}

func TestCreateTicketValidationError(t *testing.T) {
	r := newTestEngine(t)
	w := do(r, http.MethodPost, "/api/v1/tickets", map[string]interface{}{"product_id": "pos"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "title", decode(t, w)["field"])

	w = do(r, http.MethodPost, "/api/v1/tickets", nil, map[string]string{HeaderRole: "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListFiltersAndRedacts(t *testing.T) {
	r := newTestEngine(t)
	w := do(r, http.MethodGet, "/api/v1/tickets?status=Open&priority=Critical,High", nil, asAgent)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["total"])

	w = do(r, http.MethodGet, "/api/v1/tickets?q=pizza", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tickets := decode(t, w)["tickets"].([]interface{})
	require.Len(t, tickets, 1)
	summary := tickets[0].(map[string]interface{})["closure_summary"].(map[string]interface{})
	assert.NotContains(t, summary, "internal_summary")
}

func TestGetTicketNotFound(t *testing.T) {
	r := newTestEngine(t)
	w := do(r, http.MethodGet, "/api/v1/tickets/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateTicketEndpoint(t *testing.T) {
	r := newTestEngine(t)

	w := do(r, http.MethodPatch, "/api/v1/tickets/ticket-4", map[string]interface{}{"priority": "High"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "clients cannot change priority")

	headers := map[string]string{HeaderRole: "cs", "If-Match": `"1"`}
	w = do(r, http.MethodPatch, "/api/v1/tickets/ticket-4", map[string]interface{}{"priority": "High"}, headers)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "High", decode(t, w)["priority"])
	assert.Equal(t, `"2"`, w.Header().Get("ETag"))

	w = do(r, http.MethodPatch, "/api/v1/tickets/ticket-4", map[string]interface{}{"priority": "Low"}, headers)
	assert.Equal(t, http.StatusConflict, w.Code, "stale If-Match")

	w = do(r, http.MethodPatch, "/api/v1/tickets/ticket-4", map[string]interface{}{"priority": "Low"},
		map[string]string{HeaderRole: "cs", "If-Match": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransferAndTimeline(t *testing.T) {
	r := newTestEngine(t)
	w := do(r, http.MethodPost, "/api/v1/tickets/ticket-4/transfer",
		map[string]string{"team": "tech", "user": "Alex Chen", "note": "Escalating"}, asAgent)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Alex Chen", decode(t, w)["assigned_to"])

	w = do(r, http.MethodGet, "/api/v1/tickets/ticket-4/timeline", nil, asAgent)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["timeline"], 2)

	w = do(r, http.MethodGet, "/api/v1/tickets/ticket-4/timeline", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["timeline"], 1, "clients do not see transfers")
}

func TestCloseThenMessageConflict(t *testing.T) {
	r := newTestEngine(t)
	w := do(r, http.MethodPost, "/api/v1/tickets/ticket-1/close",
		map[string]string{"client_summary": "Replaced the terminal."}, asAgent)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Closed", decode(t, w)["status"])

	w = do(r, http.MethodPost, "/api/v1/tickets/ticket-1/messages", map[string]string{"content": "thanks"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMessagesLanes(t *testing.T) {
	r := newTestEngine(t)

	w := do(r, http.MethodGet, "/api/v1/tickets/ticket-1/messages?lane=internal", nil, asAgent)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "internal", body["lane"])
	assert.Len(t, body["messages"], 1)

	w = do(r, http.MethodGet, "/api/v1/tickets/ticket-1/messages?lane=internal", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, "client", body["lane"])
	assert.Len(t, body["messages"], 3)
}

func TestSendMessageIdempotencyKey(t *testing.T) {
	r := newTestEngine(t)
	headers := map[string]string{HeaderIdempotencyKey: "retry-1"}

	first := do(r, http.MethodPost, "/api/v1/tickets/ticket-2/messages", map[string]string{"content": "Screenshot attached"}, headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := do(r, http.MethodPost, "/api/v1/tickets/ticket-2/messages", map[string]string{"content": "Screenshot attached"}, headers)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, decode(t, first)["id"], decode(t, second)["id"])

	w := do(r, http.MethodGet, "/api/v1/tickets/ticket-2/messages", nil, nil)
	assert.Len(t, decode(t, w)["messages"], 3)
}

func TestReactEndpoint(t *testing.T) {
	r := newTestEngine(t)
	w := do(r, http.MethodPost, "/api/v1/tickets/ticket-1/messages/msg-1c/reactions", map[string]string{"emoji": "👍"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reactions := decode(t, w)["reactions"].(map[string]interface{})
	assert.EqualValues(t, 1, reactions["👍"].(map[string]interface{})["count"])

	w = do(r, http.MethodPost, "/api/v1/tickets/ticket-1/messages/nope/reactions", map[string]string{"emoji": "👍"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBulkEndpoint(t *testing.T) {
	r := newTestEngine(t)
	w := do(r, http.MethodPost, "/api/v1/tickets/bulk", map[string]interface{}{
		"ticket_ids": []string{"ticket-1", "ticket-2"},
		"action":     "status",
		"value":      "Closed",
	}, asAgent)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode(t, w)["updated"])

	w = do(r, http.MethodGet, "/api/v1/tickets?status=Closed", nil, asAgent)
	assert.EqualValues(t, 3, decode(t, w)["total"])

	w = do(r, http.MethodPost, "/api/v1/tickets/bulk", map[string]interface{}{
		"ticket_ids": []string{"ticket-1"},
		"action":     "archive",
	}, asAgent)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/tickets/bulk", map[string]interface{}{
		"ticket_ids": []string{"ticket-4"},
		"action":     "priority",
		"value":      "Low",
	}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRenderContentEscapesHTML(t *testing.T) {
	out := renderContent("<script>alert(1)</script>\n**ok**")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "<strong>ok</strong>")
}
