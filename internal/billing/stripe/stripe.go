// Package stripe implements the billing provider contract against the
// Stripe invoicing API.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/usagegate/usagegate/internal/billing/provider"
)

const apiBase = "https://api.stripe.com"

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New builds a Stripe client. baseURL overrides the API host for tests;
// empty means production.
func New(apiKey, baseURL string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, provider.ErrInvalidConfig
	}
	if baseURL == "" {
		baseURL = apiBase
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 12 * time.Second},
	}, nil
}

func (c *Client) Name() string { return "stripe" }

type lineResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Proration   bool   `json:"proration"`
	Price       struct {
		ID string `json:"id"`
	} `json:"price"`
	InvoiceItem string `json:"invoice_item"`
}

type linesPage struct {
	Data    []lineResponse `json:"data"`
	HasMore bool           `json:"has_more"`
}

type itemResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) ListUpcomingLines(ctx context.Context, subscriptionID string) ([]provider.InvoiceLine, error) {
	lines := make([]provider.InvoiceLine, 0)
	startingAfter := ""

	for {
		values := url.Values{}
		values.Set("subscription", subscriptionID)
		values.Set("limit", "100")
		if startingAfter != "" {
			values.Set("starting_after", startingAfter)
		}

		var page linesPage
		if err := c.do(ctx, http.MethodGet, "/v1/invoices/upcoming/lines?"+values.Encode(), nil, &page); err != nil {
			return nil, &provider.Error{Provider: c.Name(), Op: "list_upcoming_lines", Err: err}
		}

		for _, l := range page.Data {
			lines = append(lines, provider.InvoiceLine{
				ID:            l.ID,
				InvoiceItemID: l.InvoiceItem,
				Description:   l.Description,
				Amount:        l.Amount,
				Currency:      l.Currency,
				Proration:     l.Proration,
				PriceID:       l.Price.ID,
			})
		}

		if !page.HasMore || len(page.Data) == 0 {
			break
		}
		startingAfter = page.Data[len(page.Data)-1].ID
	}

	return lines, nil
}

func (c *Client) DeleteInvoiceItem(ctx context.Context, invoiceItemID string) error {
	if strings.TrimSpace(invoiceItemID) == "" {
		return &provider.Error{Provider: c.Name(), Op: "delete_invoice_item", Err: provider.ErrInvoiceItemMissing}
	}
	if err := c.do(ctx, http.MethodDelete, "/v1/invoiceitems/"+invoiceItemID, nil, nil); err != nil {
		return &provider.Error{Provider: c.Name(), Op: "delete_invoice_item", Err: err}
	}
	return nil
}

func (c *Client) CreateInvoiceItem(ctx context.Context, item provider.InvoiceItem) (string, error) {
	values := url.Values{}
	values.Set("customer", item.CustomerID)
	values.Set("currency", strings.ToLower(item.Currency))
	values.Set("description", item.Description)
	values.Set("period[start]", strconv.FormatInt(item.Period.Start, 10))
	values.Set("period[end]", strconv.FormatInt(item.Period.End, 10))
	if item.ProductID != "" {
		values.Set("price_data[product]", item.ProductID)
		values.Set("price_data[currency]", strings.ToLower(item.Currency))
		values.Set("price_data[unit_amount]", strconv.FormatInt(item.Amount, 10))
		values.Set("quantity", "1")
	} else {
		values.Set("amount", strconv.FormatInt(item.Amount, 10))
	}

	var created itemResponse
	if err := c.do(ctx, http.MethodPost, "/v1/invoiceitems", values, &created); err != nil {
		return "", &provider.Error{Provider: c.Name(), Op: "create_invoice_item", Err: err}
	}
	return created.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, values url.Values, out any) error {
	body := ""
	if values != nil {
		body = values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error.Message == "" {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return errors.New(apiErr.Error.Message)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
