package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jiaming2012/webhook-trader/src/models"
)

const (
	liveBaseURL  = "https://api.alpaca.markets"
	paperBaseURL = "https://paper-api.alpaca.markets"
	dataBaseURL  = "https://data.alpaca.markets"
)

// Client is a thin REST client for the Alpaca trading and market data APIs.
type Client struct {
	BaseURL   string
	DataURL   string
	apiKey    string
	apiSecret string
	client    http.Client
}

func NewClient(creds models.AccountCredentials) *Client {
	baseURL := liveBaseURL
	if creds.Paper {
		baseURL = paperBaseURL
	}

	return &Client{
		BaseURL:   baseURL,
		DataURL:   dataBaseURL,
		apiKey:    creds.APIKey,
		apiSecret: creds.APISecret,
		client: http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, rawURL string, body, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("alpaca: failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return 0, fmt.Errorf("alpaca: failed to create request: %w", err)
	}

	req.Header.Add("Accept", "application/json")
	req.Header.Add("APCA-API-KEY-ID", c.apiKey)
	req.Header.Add("APCA-API-SECRET-KEY", c.apiSecret)
	if body != nil {
		req.Header.Add("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("alpaca: request failed: %w", err)
	}

	defer res.Body.Close()

	if res.StatusCode >= 400 {
		msg, _ := io.ReadAll(res.Body)
		return res.StatusCode, fmt.Errorf("alpaca: %s %s: %s: %s", method, req.URL.Path, res.Status, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return res.StatusCode, fmt.Errorf("alpaca: failed to decode json: %w", err)
		}
	}

	return res.StatusCode, nil
}

func (c *Client) GetAccount(ctx context.Context) (*Account, error) {
	var dto accountDTO
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/v2/account", c.BaseURL), nil, &dto); err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}

	account, err := dto.ToAccount()
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}

	return account, nil
}

func (c *Client) GetClock(ctx context.Context) (*Clock, error) {
	var clock Clock
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/v2/clock", c.BaseURL), nil, &clock); err != nil {
		return nil, fmt.Errorf("GetClock: %w", err)
	}

	return &clock, nil
}

func (c *Client) GetOpenPosition(ctx context.Context, symbol string) (*Position, error) {
	var dto positionDTO
	statusCode, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/v2/positions/%s", c.BaseURL, url.PathEscape(symbol)), nil, &dto)
	if err != nil {
		if statusCode == http.StatusNotFound {
			return nil, nil
		}

		return nil, fmt.Errorf("GetOpenPosition: %w", err)
	}

	position, err := dto.ToPosition()
	if err != nil {
		return nil, fmt.Errorf("GetOpenPosition: %w", err)
	}

	return position, nil
}

func (c *Client) ClosePosition(ctx context.Context, symbol string, percentage float64) (*Order, error) {
	closeURL := fmt.Sprintf("%s/v2/positions/%s?percentage=%s", c.BaseURL, url.PathEscape(symbol), url.QueryEscape(FormatFloat(percentage)))

	var dto orderDTO
	if _, err := c.do(ctx, http.MethodDelete, closeURL, nil, &dto); err != nil {
		return nil, fmt.Errorf("ClosePosition: %w", err)
	}

	order, err := dto.ToOrder()
	if err != nil {
		return nil, fmt.Errorf("ClosePosition: %w", err)
	}

	return order, nil
}

func (c *Client) SubmitOrder(ctx context.Context, req *OrderRequest) (*Order, error) {
	var dto orderDTO
	if _, err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/v2/orders", c.BaseURL), req, &dto); err != nil {
		return nil, fmt.Errorf("SubmitOrder: %w", err)
	}

	order, err := dto.ToOrder()
	if err != nil {
		return nil, fmt.Errorf("SubmitOrder: %w", err)
	}

	return order, nil
}

func (c *Client) GetOrderByID(ctx context.Context, orderID string) (*Order, error) {
	var dto orderDTO
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/v2/orders/%s", c.BaseURL, url.PathEscape(orderID)), nil, &dto); err != nil {
		return nil, fmt.Errorf("GetOrderByID: %w", err)
	}

	order, err := dto.ToOrder()
	if err != nil {
		return nil, fmt.Errorf("GetOrderByID: %w", err)
	}

	return order, nil
}

func (c *Client) CancelOrderByID(ctx context.Context, orderID string) error {
	if _, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/v2/orders/%s", c.BaseURL, url.PathEscape(orderID)), nil, nil); err != nil {
		return fmt.Errorf("CancelOrderByID: %w", err)
	}

	return nil
}

// GetLatestQuote fetches the most recent quote for symbol. Crypto symbols
// are served by a different endpoint than stocks.
func (c *Client) GetLatestQuote(ctx context.Context, symbol string, assetClass string) (*Quote, error) {
	if assetClass == "crypto" {
		quoteURL := fmt.Sprintf("%s/v1beta3/crypto/us/latest/quotes?symbols=%s", c.DataURL, url.QueryEscape(symbol))

		var dto cryptoQuoteResponseDTO
		if _, err := c.do(ctx, http.MethodGet, quoteURL, nil, &dto); err != nil {
			return nil, fmt.Errorf("GetLatestQuote: %w", err)
		}

		quote, found := dto.Quotes[symbol]
		if !found {
			return nil, fmt.Errorf("GetLatestQuote: no quote returned for %s", symbol)
		}

		return &quote, nil
	}

	var dto stockQuoteResponseDTO
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/v2/stocks/%s/quotes/latest", c.DataURL, url.PathEscape(symbol)), nil, &dto); err != nil {
		return nil, fmt.Errorf("GetLatestQuote: %w", err)
	}

	return &dto.Quote, nil
}
