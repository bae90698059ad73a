// Package api implements the backend inventory API client.
package api

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

	"okuma/internal/domain/receipt"
	"okuma/pkg/logger"
)

// TokenSource supplies the bearer token of the authenticated operator.
// An empty token means anonymous access.
type TokenSource interface {
	Token() string
}

// StokRow is one stock-catalog search result.
type StokRow struct {
	Code    string `json:"stok_kodu"`
	Name    string `json:"stok_adi"`
	Barcode string `json:"barkodu"`
}

// Config holds client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration // default 15s
}

// Client talks to the backend inventory API. Implements receipt.Backend.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     *logger.Logger
}

// New creates a Client. A trailing slash on the base URL is tolerated.
func New(cfg Config, tokens TokenSource, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		log:     log.WithComponent("api"),
	}
}

// receiptRecord is the server's receipt shape. fisno arrives as a number.
type receiptRecord struct {
	OkumaID       int64                  `json:"okuma_id"`
	Fisno         int64                  `json:"fisno"`
	Tarih         string                 `json:"tarih"`
	CariCode      string                 `json:"cari_kodu"`
	CariName      string                 `json:"cari_isim"`
	UserID        int64                  `json:"user_id"`
	Username      string                 `json:"username"`
	Aktarildi     receipt.TransferStatus `json:"is_aktarildi"`
	TotalQuantity int64                  `json:"toplam_adet"`
	TotalAmount   receipt.Money          `json:"toplam_tutar"`
	IsNew         bool                   `json:"is_new"`
	MikroFisno    int64                  `json:"mikro_fisno"`
	MikroFisseri  string                 `json:"mikro_fisseri"`
	Details       []receipt.Line         `json:"details"`
}

func (r *receiptRecord) toSession() *receipt.Session {
	s := &receipt.Session{
		OkumaID:       r.OkumaID,
		Fisno:         strconv.FormatInt(r.Fisno, 10),
		Tarih:         r.Tarih,
		CariCode:      r.CariCode,
		CariName:      r.CariName,
		UserID:        r.UserID,
		Username:      r.Username,
		Aktarildi:     r.Aktarildi,
		IsNew:         r.IsNew,
		TotalQuantity: r.TotalQuantity,
		TotalAmount:   r.TotalAmount,
		MikroFisno:    r.MikroFisno,
		MikroFisseri:  r.MikroFisseri,
		Details:       r.Details,
	}
	if s.Details == nil {
		s.Details = make([]receipt.Line, 0)
	}
	return s
}

// LastReceiptNumber implements receipt.Backend.
func (c *Client) LastReceiptNumber(ctx context.Context) (receipt.LastReceipt, error) {
	var out receipt.LastReceipt
	err := c.get(ctx, "stok/sonfisno", &out)
	return out, err
}

// SaveReceipt implements receipt.Backend.
func (c *Client) SaveReceipt(ctx context.Context, payload *receipt.SavePayload) (*receipt.Session, error) {
	var record receiptRecord
	if err := c.post(ctx, "stok/okumafisikaydet", payload, &record); err != nil {
		return nil, err
	}
	return record.toSession(), nil
}

// TransferReceipt implements receipt.Backend.
func (c *Client) TransferReceipt(ctx context.Context, okumaID int64) (receipt.TransferResult, error) {
	var out receipt.TransferResult
	err := c.post(ctx, "stok/mikroyagonder", map[string]int64{"okuma_id": okumaID}, &out)
	return out, err
}

// History implements receipt.Backend.
func (c *Client) History(ctx context.Context, page, pageSize int) ([]receipt.Summary, error) {
	in := map[string]int{"sayfano": page, "satirsayi": pageSize}
	var out []receipt.Summary
	if err := c.post(ctx, "stok/okumafisiliste", in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// HistoryDetail implements receipt.Backend.
func (c *Client) HistoryDetail(ctx context.Context, okumaID int64) (*receipt.Session, error) {
	var record receiptRecord
	if err := c.post(ctx, "stok/okumafisigetir", map[string]int64{"okuma_id": okumaID}, &record); err != nil {
		return nil, err
	}
	return record.toSession(), nil
}

// SearchCari looks counterparties up by code or name.
// field is "cari_kodu" or "cari_isim".
func (c *Client) SearchCari(ctx context.Context, field, query string) ([]receipt.Cari, error) {
	in := map[string]string{"search_field": field, "search_string": query}
	var out []receipt.Cari
	if err := c.post(ctx, "stok/carisearch", in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchStok looks stock items up by name, code or barcode.
// field is "stok_adi", "stok_kodu" or "barkodu".
func (c *Client) SearchStok(ctx context.Context, field, query string) ([]StokRow, error) {
	in := map[string]string{"search_field": field, "search_string": query}
	var out []StokRow
	if err := c.post(ctx, "stok/stoksearch", in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, out)
}

func (c *Client) post(ctx context.Context, endpoint string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, endpoint, body, out)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, endpoint, resp.StatusCode, snippet)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, endpoint, err)
	}
	return nil
}

var _ receipt.Backend = (*Client)(nil)
