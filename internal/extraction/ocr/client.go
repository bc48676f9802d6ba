package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 4 << 20

// Client is a minimal REST client for the extraction oracle.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient constructs an oracle client.
func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("ocr: empty base url")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// ExtractDocument submits a document or photo payload and returns the
// structured extraction. ErrNothingUsable signals that the oracle found
// neither a meter number nor readings.
func (c *Client) ExtractDocument(ctx context.Context, payload []byte, mimeType string) (DocumentExtraction, error) {
	if len(payload) == 0 || mimeType == "" {
		return DocumentExtraction{}, errors.New("ocr: empty payload")
	}

	body := map[string]any{"file": dataURL(mimeType, payload)}
	var extraction DocumentExtraction
	if err := c.doJSON(ctx, "/v1/extract/document", body, &extraction); err != nil {
		return DocumentExtraction{}, err
	}
	if !extraction.Usable() {
		return extraction, ErrNothingUsable
	}
	return extraction, nil
}

// ReadMeterPhoto submits a live meter photo with an optional meter-kind
// hint for calibration. ErrUnreadable signals a readable request that
// the oracle could not decipher.
func (c *Client) ReadMeterPhoto(ctx context.Context, image []byte, mimeType, kindHint string) (PhotoReading, error) {
	if len(image) == 0 || mimeType == "" {
		return PhotoReading{}, errors.New("ocr: empty image")
	}

	body := map[string]any{"image": dataURL(mimeType, image)}
	if kindHint != "" {
		body["meterType"] = kindHint
	}
	var reading PhotoReading
	if err := c.doJSON(ctx, "/v1/extract/photo", body, &reading); err != nil {
		return PhotoReading{}, err
	}
	return reading, nil
}

// ExtractTable asks the oracle to pull tabular (date, value) data out
// of a document that cannot be decoded locally, such as a PDF.
func (c *Client) ExtractTable(ctx context.Context, payload []byte, mimeType string) ([]ReadingRow, error) {
	if len(payload) == 0 || mimeType == "" {
		return nil, errors.New("ocr: empty payload")
	}

	body := map[string]any{"file": dataURL(mimeType, payload)}
	var resp struct {
		Rows []ReadingRow `json:"rows"`
	}
	if err := c.doJSON(ctx, "/v1/extract/table", body, &resp); err != nil {
		return nil, err
	}

	rows := make([]ReadingRow, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		if row.Date == "" || row.Value == nil {
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrNothingUsable
	}
	return rows, nil
}

func (c *Client) doJSON(ctx context.Context, path string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(data, &failure); err == nil && failure.Error != "" {
			if resp.StatusCode == http.StatusBadRequest {
				return fmt.Errorf("%w: %s", ErrUnreadable, failure.Error)
			}
			return fmt.Errorf("%w: %s", ErrOracleUnavailable, failure.Error)
		}
		return fmt.Errorf("%w: status %d", ErrOracleUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	return nil
}

func dataURL(mimeType string, payload []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(payload)
}
