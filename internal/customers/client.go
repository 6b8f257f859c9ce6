package customers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"posimport/internal"
	"posimport/internal/config"
	"posimport/internal/logging"
)

var (
	ErrNotFound   = eris.New("customer not found")
	ErrMissingKey = eris.New("missing STORE_API_KEY")
	ErrUnexpected = eris.New("unexpected customer store response")
)

var (
	maxAttempts     = 5
	backoffBaseStep = 250 * time.Millisecond
)

// Client talks to a hosted PostgREST-style customers table.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
	logger     *slog.Logger
}

func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.StoreTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.StoreRateLimitRPS),
		logger:     logging.OrDefault(logger),
	}
}

// FetchAll pages through the table with offset/limit until a short page comes back.
func (c *Client) FetchAll(ctx context.Context) ([]internal.Customer, error) {
	pageSize := c.cfg.StorePageSize
	if pageSize <= 0 {
		pageSize = 1000
	}

	all := make([]internal.Customer, 0)
	for offset := 0; ; offset += pageSize {
		query := url.Values{}
		query.Set("select", "*")
		query.Set("order", "created_at.asc")
		query.Set("offset", strconv.Itoa(offset))
		query.Set("limit", strconv.Itoa(pageSize))

		body, err := c.do(ctx, http.MethodGet, query, nil)
		if err != nil {
			return nil, err
		}
		page, err := parseCustomers(body)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			break
		}
	}

	c.logger.Debug("fetched remote customers", "count", len(all))
	return all, nil
}

func (c *Client) Create(ctx context.Context, customer internal.Customer) (internal.Customer, error) {
	payload := createPayload(customer)
	body, err := c.do(ctx, http.MethodPost, nil, payload)
	if err != nil {
		return internal.Customer{}, eris.Wrapf(err, "create customer %s", customer.Name)
	}
	return firstCustomer(body)
}

func (c *Client) Update(ctx context.Context, id string, patch internal.CustomerPatch) (internal.Customer, error) {
	query := url.Values{}
	query.Set("id", "eq."+id)

	if patch.Empty() {
		query.Set("select", "*")
		query.Set("limit", "1")
		body, err := c.do(ctx, http.MethodGet, query, nil)
		if err != nil {
			return internal.Customer{}, eris.Wrapf(err, "get customer %s", id)
		}
		return firstCustomer(body)
	}

	body, err := c.do(ctx, http.MethodPatch, query, patch)
	if err != nil {
		return internal.Customer{}, eris.Wrapf(err, "update customer %s", id)
	}
	out, err := firstCustomer(body)
	return out, eris.Wrapf(err, "update customer %s", id)
}

func (c *Client) endpoint(query url.Values) (string, error) {
	base := strings.TrimRight(c.cfg.StoreAPIBaseURL, "/")
	if base == "" {
		return "", eris.New("missing STORE_API_BASE_URL")
	}
	u, err := url.Parse(base + "/" + strings.Trim(c.cfg.StoreTable, "/"))
	if err != nil {
		return "", eris.Wrap(err, "parse store url")
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method string, query url.Values, payload any) ([]byte, error) {
	if strings.TrimSpace(c.cfg.StoreAPIKey) == "" {
		return nil, ErrMissingKey
	}
	target, err := c.endpoint(query)
	if err != nil {
		return nil, err
	}

	var blob []byte
	if payload != nil {
		if blob, err = json.Marshal(payload); err != nil {
			return nil, eris.Wrap(err, "encode request body")
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "wait for rate limiter")
		}

		var reader io.Reader
		if blob != nil {
			reader = bytes.NewReader(blob)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, eris.Wrap(err, "build request")
		}
		req.Header.Set("apikey", c.cfg.StoreAPIKey)
		req.Header.Set("Authorization", "Bearer "+c.cfg.StoreAPIKey)
		req.Header.Set("Accept", "application/json")
		if blob != nil {
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Prefer", "return=representation")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil || method == http.MethodPost {
				break
			}
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}
		if isRetryableStatus(method, resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("customer store status %d", resp.StatusCode)
			c.logger.Warn("retrying customer store request", "method", method, "status", resp.StatusCode, "attempt", attempt)
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}
		return nil, eris.Errorf("customer store error: status=%d body=%s", resp.StatusCode, apiMessage(body))
	}

	if lastErr == nil {
		lastErr = eris.New("customer store request failed")
	}
	return nil, eris.Wrapf(lastErr, "%s %s", method, c.cfg.StoreTable)
}

func sleepBackoff(ctx context.Context, attempt int) error {
	backoff := backoffBaseStep*time.Duration(1<<(attempt-1)) + time.Duration(rand.Intn(100))*time.Millisecond
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isRetryableStatus never retries POST on 5xx: the row may already exist.
func isRetryableStatus(method string, status int) bool {
	switch status {
	case http.StatusTooManyRequests:
		return true
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return method != http.MethodPost
	default:
		return false
	}
}

func apiMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "message"); msg.Exists() {
		return msg.String()
	}
	return string(body)
}

func createPayload(c internal.Customer) map[string]any {
	notes := c.Notes
	if notes == nil {
		notes = []string{}
	}
	colorTag := c.ColorTag
	if colorTag == "" {
		colorTag = string(internal.ColorTagNew)
	}
	out := map[string]any{
		"name":                 c.Name,
		"phone":                c.Phone,
		"email":                c.Email,
		"whatsapp":             c.WhatsApp,
		"gender":               c.Gender,
		"city":                 c.City,
		"birth_month":          c.BirthMonth,
		"birth_day":            c.BirthDay,
		"referral_source":      c.ReferralSource,
		"location_description": c.LocationDescription,
		"national_id":          c.NationalID,
		"referred_by":          c.ReferredBy,
		"color_tag":            colorTag,
		"notes":                notes,
		"points":               c.Points,
		"total_spent":          c.TotalSpent,
		"is_active":            true,
	}
	if c.ID != "" {
		out["id"] = c.ID
	}
	return out
}

func firstCustomer(body []byte) (internal.Customer, error) {
	list, err := parseCustomers(body)
	if err != nil {
		return internal.Customer{}, err
	}
	if len(list) == 0 {
		return internal.Customer{}, ErrNotFound
	}
	return list[0], nil
}

func parseCustomers(body []byte) ([]internal.Customer, error) {
	if !gjson.ValidBytes(body) {
		return nil, eris.Wrap(ErrUnexpected, "invalid json")
	}
	root := gjson.ParseBytes(body)
	if root.IsObject() {
		return []internal.Customer{toCustomer(root)}, nil
	}
	if !root.IsArray() {
		return nil, eris.Wrapf(ErrUnexpected, "expected array, got %s", root.Type)
	}
	out := make([]internal.Customer, 0)
	root.ForEach(func(_, item gjson.Result) bool {
		if id := strings.TrimSpace(item.Get("id").String()); id != "" {
			out = append(out, toCustomer(item))
		}
		return true
	})
	return out, nil
}

func toCustomer(r gjson.Result) internal.Customer {
	str := func(path string) string { return strings.TrimSpace(r.Get(path).String()) }
	c := internal.Customer{
		ID:                  str("id"),
		Name:                str("name"),
		Phone:               str("phone"),
		Email:               str("email"),
		WhatsApp:            str("whatsapp"),
		Gender:              str("gender"),
		City:                str("city"),
		BirthMonth:          str("birth_month"),
		BirthDay:            str("birth_day"),
		ReferralSource:      str("referral_source"),
		LocationDescription: str("location_description"),
		NationalID:          str("national_id"),
		ReferredBy:          str("referred_by"),
		ColorTag:            str("color_tag"),
		Points:              r.Get("points").Float(),
		TotalSpent:          r.Get("total_spent").Float(),
		IsActive:            true,
		CreatedAt:           str("created_at"),
		Notes:               []string{},
	}
	if active := r.Get("is_active"); active.Exists() && active.Type != gjson.Null {
		c.IsActive = active.Bool()
	}

	notes := r.Get("notes")
	switch {
	case notes.IsArray():
		notes.ForEach(func(_, n gjson.Result) bool {
			if s := strings.TrimSpace(n.String()); s != "" {
				c.Notes = append(c.Notes, s)
			}
			return true
		})
	case notes.Type == gjson.String && strings.TrimSpace(notes.String()) != "":
		c.Notes = append(c.Notes, strings.TrimSpace(notes.String()))
	}
	return c
}
