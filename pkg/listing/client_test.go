package listing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/danielvega/tradeyard-backend/pkg/errors"
	"github.com/danielvega/tradeyard-backend/pkg/enums"
)

func TestClientGetBrief(t *testing.T) {
	itemID := uuid.New()
	sellerID := uuid.New()
	respBody := `{"id":"` + itemID.String() + `","sellerId":"` + sellerID.String() + `","price":"125.00","status":"active"}`

	var capturedURL string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("http://listing.test", WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	brief, err := client.GetBrief(context.Background(), itemID)
	if err != nil {
		t.Fatalf("get brief: %v", err)
	}
	if capturedURL != "http://listing.test/internal/items/"+itemID.String() {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if brief.SellerID != sellerID {
		t.Fatalf("unexpected seller %s", brief.SellerID)
	}
	if brief.Status != enums.ItemStatusActive {
		t.Fatalf("unexpected status %s", brief.Status)
	}
	if brief.Price.String() != "125" {
		t.Fatalf("unexpected price %s", brief.Price)
	}
}

func TestClientGetBriefNotFound(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(strings.NewReader(`{"error":"not found"}`)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("http://listing.test", WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.GetBrief(context.Background(), uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeItemNotFound) {
		t.Fatalf("expected ITEM_NOT_FOUND, got %v", err)
	}
}

func TestClientReserveApplied(t *testing.T) {
	itemID := uuid.New()
	orderID := uuid.New()

	var capturedURL string
	var capturedBody map[string]any
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		if err := json.Unmarshal(bodyBytes, &capturedBody); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{}`)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("http://listing.test/", WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	applied, err := client.Reserve(context.Background(), itemID, orderID)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !applied {
		t.Fatal("expected reserve to apply")
	}
	if capturedURL != "http://listing.test/internal/items/"+itemID.String()+"/reserve" {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedBody["orderId"] != orderID.String() {
		t.Fatalf("unexpected body %+v", capturedBody)
	}
}

func TestClientReserveConflict(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusConflict,
			Body:       io.NopCloser(strings.NewReader(`{"error":"item not active"}`)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("http://listing.test", WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	applied, err := client.Reserve(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if applied {
		t.Fatal("expected conflict to report not applied")
	}
}

func TestClientTransitionServerError(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusInternalServerError,
			Body:       io.NopCloser(strings.NewReader(`boom`)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("http://listing.test", WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.MarkSold(context.Background(), uuid.New(), uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected DEPENDENCY_FAILURE, got %v", err)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
