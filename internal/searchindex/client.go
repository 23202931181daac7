package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/psds-microservice/support-service/internal/model"
)

// Client отправляет тикеты в search-service для индексации (best-effort, не блокирует API).
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
	// initialInterval: первая пауза между попытками, дальше экспоненциально.
	initialInterval time.Duration
}

// NewClient возвращает клиент. Если baseURL пустой, вызовы IndexTicket: no-op.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		maxRetries:      3,
		initialInterval: 200 * time.Millisecond,
	}
}

// IndexTicketPayload: тело POST /search/index/ticket.
type IndexTicketPayload struct {
	TicketID     string   `json:"ticket_id"`
	Code         string   `json:"code"`
	Subject      string   `json:"subject"`
	Restaurant   string   `json:"restaurant"`
	Product      string   `json:"product"`
	Status       string   `json:"status"`
	ClientStatus string   `json:"client_status"`
	Priority     string   `json:"priority"`
	AssignedTo   string   `json:"assigned_to"`
	Tags         []string `json:"tags,omitempty"`
	Version      uint64   `json:"version"`
	LastUpdated  string   `json:"last_updated"`
}

func payloadFor(t model.Ticket) IndexTicketPayload {
	return IndexTicketPayload{
		TicketID:     t.ID,
		Code:         t.Code,
		Subject:      t.Subject,
		Restaurant:   t.Restaurant,
		Product:      t.Product,
		Status:       string(t.Status),
		ClientStatus: string(t.ClientStatus),
		Priority:     string(t.Priority),
		AssignedTo:   t.AssignedTo,
		Tags:         t.Tags,
		Version:      t.Version,
		LastUpdated:  t.LastUpdated.UTC().Format(time.RFC3339),
	}
}

// IndexTicket отправляет тикет в search-service. Сетевые ошибки и 5xx
// повторяются с экспоненциальной паузой, 4xx не повторяются.
func (c *Client) IndexTicket(ctx context.Context, t model.Ticket) {
	if c.baseURL == "" {
		return
	}
	body, err := json.Marshal(payloadFor(t))
	if err != nil {
		log.Printf("searchindex: marshal: %v", err)
		return
	}
	if err := c.post(ctx, body); err != nil {
		log.Printf("searchindex: ticket %s: %v", t.ID, err)
	}
}

func (c *Client) post(ctx context.Context, body []byte) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval
	return backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search/index/ticket", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("status %d", resp.StatusCode)
		case resp.StatusCode >= 300:
			return backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx))
}

// IndexTicketAsync вызывает IndexTicket в отдельной горутине (не блокирует ответ API).
func (c *Client) IndexTicketAsync(t model.Ticket) {
	if c.baseURL == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.IndexTicket(ctx, t)
	}()
}
