package listing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/danielvega/tradeyard-backend/pkg/errors"
	"github.com/danielvega/tradeyard-backend/pkg/enums"
)

const (
	defaultTimeout             = 3 * time.Second
	responseBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("listing service base url is required")

// Client wraps the listing service's internal item endpoints. All state
// mutations are compare-and-set on the listing side: a 409 means the item
// was not in the expected state and the transition did not apply.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient builds the listing client given the service base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return client, nil
}

// ItemBrief is the listing snapshot used to validate a purchase.
type ItemBrief struct {
	ID       uuid.UUID        `json:"id"`
	SellerID uuid.UUID        `json:"sellerId"`
	Price    decimal.Decimal  `json:"price"`
	Status   enums.ItemStatus `json:"status"`
}

// GetBrief fetches the current listing snapshot for an item.
func (c *Client) GetBrief(ctx context.Context, itemID uuid.UUID) (*ItemBrief, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "listing client not configured")
	}
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item ID is required")
	}

	endpoint := fmt.Sprintf("%s/internal/items/%s", c.baseURL, url.PathEscape(itemID.String()))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build item brief request")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute item brief request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, pkgerrors.New(pkgerrors.CodeItemNotFound, "item not found")
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, statusError(resp), "item brief request failed")
	}

	var brief ItemBrief
	if err := json.NewDecoder(resp.Body).Decode(&brief); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode item brief response")
	}
	return &brief, nil
}

// Reserve attempts the ACTIVE to RESERVED transition for the order.
// Returns false when the item was not available.
func (c *Client) Reserve(ctx context.Context, itemID, orderID uuid.UUID) (bool, error) {
	return c.transition(ctx, itemID, orderID, "reserve")
}

// Release attempts the RESERVED to ACTIVE transition for the order.
// Returns false when the reservation did not belong to this order.
func (c *Client) Release(ctx context.Context, itemID, orderID uuid.UUID) (bool, error) {
	return c.transition(ctx, itemID, orderID, "release")
}

// MarkSold attempts the RESERVED to SOLD transition for the order.
func (c *Client) MarkSold(ctx context.Context, itemID, orderID uuid.UUID) (bool, error) {
	return c.transition(ctx, itemID, orderID, "mark-sold")
}

// Activate attempts the RESERVED to ACTIVE transition after a cancellation.
func (c *Client) Activate(ctx context.Context, itemID, orderID uuid.UUID) (bool, error) {
	return c.transition(ctx, itemID, orderID, "activate")
}

type transitionRequest struct {
	OrderID uuid.UUID `json:"orderId"`
}

func (c *Client) transition(ctx context.Context, itemID, orderID uuid.UUID, action string) (bool, error) {
	if c == nil {
		return false, pkgerrors.New(pkgerrors.CodeDependency, "listing client not configured")
	}
	if itemID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "item ID is required")
	}
	if orderID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "order ID is required")
	}

	payload, err := json.Marshal(transitionRequest{OrderID: orderID})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal transition request")
	}

	endpoint := fmt.Sprintf("%s/internal/items/%s/%s", c.baseURL, url.PathEscape(itemID.String()), action)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build transition request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute transition request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return true, nil
	case http.StatusConflict:
		return false, nil
	case http.StatusNotFound:
		return false, pkgerrors.New(pkgerrors.CodeItemNotFound, "item not found")
	default:
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, statusError(resp), fmt.Sprintf("%s request failed", action))
	}
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}
