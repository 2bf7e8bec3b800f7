package probe

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/csvmerge/internal/adapters/http/api"
	"github.com/okian/csvmerge/internal/domain/model"
	"github.com/okian/csvmerge/pkg/logger"
)

// httpClient talks to the csvmerge HTTP API.
type httpClient struct {
	client  *http.Client
	baseURL string
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(baseURL string, timeout time.Duration) *httpClient {
	return &httpClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// mergeResponse is a merged body and the record id the service assigned.
type mergeResponse struct {
	RecordID int64
	Body     string
}

func (c *httpClient) do(ctx context.Context, method, path string, body io.Reader, contentType string) (int, http.Header, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(ctx, "failed to close response body", logger.Error(err))
		}
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, resp.Header, data, nil
}

// health returns nil when GET /healthz answers 200.
func (c *httpClient) health(ctx context.Context) error {
	status, _, _, err := c.do(ctx, http.MethodGet, "/healthz", nil, "")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, status)
	}
	return nil
}

// submit uploads one case as a multipart CSV merge request.
func (c *httpClient) submit(ctx context.Context, tc Case) (mergeResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"start_date": tc.StartDate,
		"end_date":   tc.EndDate,
		"n":          strconv.Itoa(tc.Lag),
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return mergeResponse{}, err
		}
	}
	if err := writeCSVPart(mw, "daily.csv", tc.Daily); err != nil {
		return mergeResponse{}, err
	}
	if err := writeCSVPart(mw, "companies.csv", tc.Companies); err != nil {
		return mergeResponse{}, err
	}
	if err := mw.Close(); err != nil {
		return mergeResponse{}, err
	}

	status, header, body, err := c.do(ctx, http.MethodPost, api.BasePath+"/files", &buf, mw.FormDataContentType())
	if err != nil {
		return mergeResponse{}, err
	}
	if status != http.StatusOK {
		return mergeResponse{}, fmt.Errorf("%w: create returned %d: %s", ErrStatus, status, body)
	}
	id, err := strconv.ParseInt(header.Get(api.IDHeader), 10, 64)
	if err != nil {
		return mergeResponse{}, fmt.Errorf("%w: bad %s header %q", ErrStatus, api.IDHeader, header.Get(api.IDHeader))
	}
	return mergeResponse{RecordID: id, Body: string(body)}, nil
}

// record fetches a stored record.
func (c *httpClient) record(ctx context.Context, id int64) (model.Record, error) {
	status, _, body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/files/%d", api.BasePath, id), nil, "")
	if err != nil {
		return model.Record{}, err
	}
	if status != http.StatusOK {
		return model.Record{}, fmt.Errorf("%w: get record %d returned %d", ErrStatus, id, status)
	}
	var rec model.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return model.Record{}, fmt.Errorf("failed to decode record %d: %w", id, err)
	}
	return rec, nil
}

// deleteRecord removes a stored record.
func (c *httpClient) deleteRecord(ctx context.Context, id int64) error {
	status, _, _, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/files/%d", api.BasePath, id), nil, "")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: delete record %d returned %d", ErrStatus, id, status)
	}
	return nil
}

func writeCSVPart(mw *multipart.Writer, name string, rows [][]string) error {
	part, err := mw.CreateFormFile(name, name)
	if err != nil {
		return err
	}
	w := csv.NewWriter(part)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
