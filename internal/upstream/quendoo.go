package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// QuendooClient is a thin client for the Quendoo PMS API. Responses are
// returned as raw JSON for the agent to interpret.
type QuendooClient struct {
	baseURL string
	httpc   *http.Client
}

func NewQuendooClient(baseURL string) *QuendooClient {
	return &QuendooClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// AvailabilityUpdate is one room/date inventory change.
type AvailabilityUpdate struct {
	RoomID string  `json:"room_id"`
	Date   string  `json:"date"`
	Count  *int    `json:"count,omitempty"`
	Price  *string `json:"price,omitempty"`
}

func (c *QuendooClient) GetPropertySettings(ctx context.Context, apiKey string) ([]byte, error) {
	return c.get(ctx, apiKey, "/get_property_settings", nil)
}

func (c *QuendooClient) GetRoomsDetails(ctx context.Context, apiKey string) ([]byte, error) {
	return c.get(ctx, apiKey, "/get_rooms_details", nil)
}

func (c *QuendooClient) GetAvailability(ctx context.Context, apiKey, dateFrom, dateTo string) ([]byte, error) {
	return c.get(ctx, apiKey, "/get_availability", url.Values{
		"date_from": {dateFrom},
		"date_to":   {dateTo},
	})
}

func (c *QuendooClient) UpdateAvailability(ctx context.Context, apiKey string, updates []AvailabilityUpdate) ([]byte, error) {
	return c.post(ctx, apiKey, "/update_availability", map[string]any{"updates": updates})
}

func (c *QuendooClient) GetBookings(ctx context.Context, apiKey, dateFrom, dateTo string) ([]byte, error) {
	return c.get(ctx, apiKey, "/get_bookings", url.Values{
		"date_from": {dateFrom},
		"date_to":   {dateTo},
	})
}

func (c *QuendooClient) GetBookingOffers(ctx context.Context, apiKey, dateFrom, dateTo string, adults int) ([]byte, error) {
	return c.get(ctx, apiKey, "/get_booking_offers", url.Values{
		"date_from": {dateFrom},
		"date_to":   {dateTo},
		"adults":    {fmt.Sprint(adults)},
	})
}

func (c *QuendooClient) get(ctx context.Context, apiKey, path string, params url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return c.do(req, apiKey)
}

func (c *QuendooClient) post(ctx context.Context, apiKey, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, apiKey)
}

func (c *QuendooClient) do(req *http.Request, apiKey string) ([]byte, error) {
	req.Header.Set("X-API-Key", apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quendoo api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read quendoo response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("quendoo api status %d", resp.StatusCode)
	}
	return body, nil
}
