// Package parser is a client for a LlamaParse-compatible document parsing
// service. It turns complex formats (PDF, Office) into page-level records.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"docqa/internal/domain"
)

// Ensure Client implements the interface.
var _ domain.Parser = (*Client)(nil)

// Default configuration values.
const (
	DefaultBaseURL      = "https://api.cloud.llamaindex.ai/api/v1/parsing"
	DefaultTimeout      = 60 * time.Second
	DefaultPollInterval = time.Second
)

// Fixed parse options sent with every upload.
const (
	numWorkers = 4
	language   = "en"
)

var parseOptions = map[string]string{
	"language":              language,
	"high_res_ocr":          "true",
	"adaptive_long_table":   "true",
	"output_tables_as_HTML": "true",
}

// Config configures the parsing client.
type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	PollInterval time.Duration
}

// Client submits files to the parsing service and collects their pages.
type Client struct {
	baseURL      string
	apiKey       string
	client       *http.Client
	pollInterval time.Duration
	logger       *zap.Logger
}

type jobResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type resultResponse struct {
	Pages []struct {
		Page int    `json:"page"`
		Text string `json:"text"`
		MD   string `json:"md"`
	} `json:"pages"`
}

// NewClient creates a parsing client. An API key is required.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("parser: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		client:       &http.Client{Timeout: cfg.Timeout},
		pollInterval: cfg.PollInterval,
		logger:       logger,
	}, nil
}

// Parse parses all paths and returns their records in input order. The
// batch fails as a whole with a *domain.ParseServiceError.
func (c *Client) Parse(ctx context.Context, paths []string) ([]domain.DocumentRecord, error) {
	results := make([][]domain.DocumentRecord, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			recs, err := c.parseFile(gctx, p)
			if err != nil {
				return err
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var perr *domain.ParseServiceError
		if errors.As(err, &perr) {
			return nil, perr
		}
		return nil, &domain.ParseServiceError{Op: "parse", Err: err}
	}

	var out []domain.DocumentRecord
	for _, recs := range results {
		out = append(out, recs...)
	}
	return out, nil
}

func (c *Client) parseFile(ctx context.Context, path string) ([]domain.DocumentRecord, error) {
	start := time.Now()
	info, err := os.Stat(path)
	if err != nil {
		return nil, &domain.ParseServiceError{Op: "read", Err: err}
	}

	jobID, err := c.upload(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := c.wait(ctx, jobID); err != nil {
		return nil, err
	}
	res, err := c.result(ctx, jobID)
	if err != nil {
		return nil, err
	}

	unit := "page"
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".xlsx" || ext == ".xls" {
		unit = "sheet"
	}
	meta := map[string]any{
		domain.MetaFileType:     domain.ContentType(path),
		domain.MetaFileSize:     info.Size(),
		domain.MetaLastModified: info.ModTime().Format("2006-01-02"),
		domain.MetaExtractor:    "advanced",
		"parse_job_id":          jobID,
	}

	var recs []domain.DocumentRecord
	for _, p := range res.Pages {
		text := p.MD
		if strings.TrimSpace(text) == "" {
			text = p.Text
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		label := fmt.Sprintf("%s %d", unit, p.Page)
		recs = append(recs, domain.NewDocumentRecord(path, text, label, meta))
	}
	if len(recs) == 0 {
		recs = append(recs, domain.NewDocumentRecord(path, "", "", meta))
	}

	c.logger.Debug("document parsed",
		zap.String("path", path),
		zap.String("job_id", jobID),
		zap.Int("records", len(recs)),
		zap.Duration("elapsed", time.Since(start)))
	return recs, nil
}

func (c *Client) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &domain.ParseServiceError{Op: "upload", Err: err}
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", &domain.ParseServiceError{Op: "upload", Err: err}
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", &domain.ParseServiceError{Op: "upload", Err: err}
	}
	for k, v := range parseOptions {
		if err := w.WriteField(k, v); err != nil {
			return "", &domain.ParseServiceError{Op: "upload", Err: err}
		}
	}
	if err := w.Close(); err != nil {
		return "", &domain.ParseServiceError{Op: "upload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &body)
	if err != nil {
		return "", &domain.ParseServiceError{Op: "upload", Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var job jobResponse
	if err := c.do(req, "upload", &job); err != nil {
		return "", err
	}
	if job.ID == "" {
		return "", &domain.ParseServiceError{Op: "upload", Err: errors.New("no job id returned")}
	}
	return job.ID, nil
}

// wait polls the job until it reaches a terminal state.
func (c *Client) wait(ctx context.Context, jobID string) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/job/"+jobID, http.NoBody)
		if err != nil {
			return &domain.ParseServiceError{Op: "poll", Err: err}
		}
		var job jobResponse
		if err := c.do(req, "poll", &job); err != nil {
			return err
		}
		switch strings.ToUpper(job.Status) {
		case "SUCCESS":
			return nil
		case "ERROR", "CANCELED", "CANCELLED":
			msg := job.ErrorMessage
			if msg == "" {
				msg = "job " + strings.ToLower(job.Status)
			}
			return &domain.ParseServiceError{Op: "poll", Err: errors.New(msg)}
		}
		select {
		case <-ctx.Done():
			return &domain.ParseServiceError{Op: "poll", Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

func (c *Client) result(ctx context.Context, jobID string) (*resultResponse, error) {
	url := c.baseURL + "/job/" + jobID + "/result/json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &domain.ParseServiceError{Op: "result", Err: err}
	}
	var res resultResponse
	if err := c.do(req, "result", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// do sends an authenticated request and decodes a JSON response into out.
func (c *Client) do(req *http.Request, op string, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &domain.ParseServiceError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.ParseServiceError{Op: op, Err: err}
	}
	if resp.StatusCode >= 300 {
		return &domain.ParseServiceError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(payload))),
		}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &domain.ParseServiceError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
