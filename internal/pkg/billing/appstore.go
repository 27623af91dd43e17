package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prepvidya/PrepVidya/internal/pkg/env"
)

const (
	defaultVerifyReceiptProductionURL = "https://buy.itunes.apple.com/verifyReceipt"
	defaultVerifyReceiptSandboxURL    = "https://sandbox.itunes.apple.com/verifyReceipt"
)

// Apple environment-mismatch status codes. Each triggers exactly one retry
// against the other endpoint; the retry's result is final.
const (
	statusSandboxReceiptOnProduction = 21007
	statusProductionReceiptOnSandbox = 21008
)

// AppStoreClient verifies opaque App Store receipts against Apple's
// verifyReceipt endpoints.
type AppStoreClient struct {
	ProductionURL string
	SandboxURL    string

	// SharedSecret is required by Apple to return renewal metadata for
	// auto-renewable subscriptions.
	SharedSecret string

	// BundleID, when set, is cross-checked against the bundle id embedded in
	// the receipt so receipts from a different app cannot be replayed here.
	BundleID string

	HTTPClient *http.Client
}

func NewAppStoreClientFromEnv() *AppStoreClient {
	return &AppStoreClient{
		ProductionURL: strings.TrimSpace(env.GetEnv("APPLE_VERIFY_RECEIPT_URL", defaultVerifyReceiptProductionURL)),
		SandboxURL:    strings.TrimSpace(env.GetEnv("APPLE_VERIFY_RECEIPT_SANDBOX_URL", defaultVerifyReceiptSandboxURL)),
		SharedSecret:  strings.TrimSpace(env.GetEnv("APPLE_SHARED_SECRET", "")),
		BundleID:      strings.TrimSpace(env.GetEnv("APPLE_BUNDLE_ID", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type verifyReceiptRequest struct {
	ReceiptData            string `json:"receipt-data"`
	Password               string `json:"password,omitempty"`
	ExcludeOldTransactions bool   `json:"exclude-old-transactions"`
}

// ReceiptItem is one line item of a verified receipt. Subscriptions and
// one-time purchases arrive in different lists but share this shape.
type ReceiptItem struct {
	ProductID             string `json:"product_id"`
	TransactionID         string `json:"transaction_id"`
	OriginalTransactionID string `json:"original_transaction_id"`
	PurchaseDateMs        string `json:"purchase_date_ms"`
	ExpiresDateMs         string `json:"expires_date_ms"`
}

type verifyReceiptResponse struct {
	Status      int    `json:"status"`
	Environment string `json:"environment"`
	Receipt     struct {
		BundleID string        `json:"bundle_id"`
		InApp    []ReceiptItem `json:"in_app"`
	} `json:"receipt"`
	LatestReceiptInfo []ReceiptItem `json:"latest_receipt_info"`
}

// lineItems flattens both list shapes Apple uses: latest_receipt_info for
// auto-renewable subscriptions, receipt.in_app for other purchase types.
func (r *verifyReceiptResponse) lineItems() []ReceiptItem {
	items := make([]ReceiptItem, 0, len(r.LatestReceiptInfo)+len(r.Receipt.InApp))
	items = append(items, r.LatestReceiptInfo...)
	items = append(items, r.Receipt.InApp...)
	return items
}

func (c *AppStoreClient) post(ctx context.Context, url string, body []byte) (*verifyReceiptResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &VerificationUnavailableError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &VerificationUnavailableError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &VerificationUnavailableError{
			Err: fmt.Errorf("verifyReceipt returned HTTP %d", resp.StatusCode),
		}
	}

	var out verifyReceiptResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse verifyReceipt response: %w", err)
	}
	return &out, nil
}

// verify posts the receipt to production first and follows at most one
// environment redirect. It never makes a third call.
func (c *AppStoreClient) verify(ctx context.Context, receipt string) (*verifyReceiptResponse, error) {
	payload := verifyReceiptRequest{
		ReceiptData:            receipt,
		ExcludeOldTransactions: true,
	}
	if c.SharedSecret != "" {
		payload.Password = c.SharedSecret
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, c.ProductionURL, body)
	if err != nil {
		return nil, err
	}

	switch resp.Status {
	case statusSandboxReceiptOnProduction:
		return c.post(ctx, c.SandboxURL, body)
	case statusProductionReceiptOnSandbox:
		return c.post(ctx, c.ProductionURL, body)
	default:
		return resp, nil
	}
}

// VerifyForProduct verifies a receipt and normalizes it into a
// VerifiedPurchaseRecord for the expected product id. Among multiple
// renewal line items for the product, the one with the latest expiry is
// authoritative.
func (c *AppStoreClient) VerifyForProduct(ctx context.Context, receipt, expectedProductID string) (*VerifiedPurchaseRecord, error) {
	resp, err := c.verify(ctx, receipt)
	if err != nil {
		return nil, err
	}

	if resp.Status != 0 {
		return nil, &ReceiptRejectedError{Status: resp.Status}
	}

	if c.BundleID != "" {
		if resp.Receipt.BundleID == "" || resp.Receipt.BundleID != c.BundleID {
			return nil, ErrBundleMismatch
		}
	}

	var matches []ReceiptItem
	for _, item := range resp.lineItems() {
		if item.ProductID == expectedProductID {
			matches = append(matches, item)
		}
	}
	if len(matches) == 0 {
		return nil, ErrProductMismatch
	}

	// Pick the match with the latest expiry. A subscription receipt with no
	// expiry on any matching item usually means the shared secret was not
	// supplied, so Apple withheld renewal metadata; liveness cannot be
	// determined and the claim must not be treated as permanent access.
	var best *ReceiptItem
	var bestExpiry int64
	for i := range matches {
		ms, ok := parseMs(matches[i].ExpiresDateMs)
		if !ok {
			continue
		}
		if best == nil || ms > bestExpiry {
			best = &matches[i]
			bestExpiry = ms
		}
	}
	if best == nil {
		return nil, &ConfigurationError{
			Reason: "could not determine subscription expiration from receipt; ensure APPLE_SHARED_SECRET is configured",
		}
	}

	record := &VerifiedPurchaseRecord{
		ProductID:             best.ProductID,
		TransactionID:         best.TransactionID,
		OriginalTransactionID: best.OriginalTransactionID,
		Status:                resp.Status,
	}

	expiry := time.UnixMilli(bestExpiry)
	record.ExpiresAt = &expiry

	if ms, ok := parseMs(best.PurchaseDateMs); ok {
		record.PurchasedAt = time.UnixMilli(ms)
	}

	return record, nil
}

func parseMs(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}
