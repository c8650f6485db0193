package renderer

import (
	"context"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/lgu-docflow/internal/core/domain"
	"github.com/kirillkom/lgu-docflow/internal/infrastructure/resilience"
)

const defaultMaxDocumentBytes = 20 << 20

// Client calls the external document renderer over HTTP and returns the PDF bytes.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
	maxBytes   int64
}

type Options struct {
	Timeout            time.Duration
	MaxDocumentBytes   int64
	ResilienceExecutor *resilience.Executor
}

func New(baseURL string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxBytes := opts.MaxDocumentBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxDocumentBytes
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   opts.ResilienceExecutor,
		maxBytes:   maxBytes,
	}
}

type renderRequest struct {
	Template      string            `json:"template"`
	RequestID     string            `json:"request_id"`
	RequestNumber string            `json:"request_number"`
	Fields        map[string]string `json:"fields"`
}

func (c *Client) Render(ctx context.Context, job domain.PDFJob) ([]byte, error) {
	payload := renderRequest{
		Template:      job.DocumentType,
		RequestID:     job.RequestID,
		RequestNumber: job.RequestNumber,
		Fields:        mergeFields(job),
	}

	data, err := resilience.Call(ctx, c.executor, "renderer.render", func(ctx context.Context) ([]byte, error) {
		return c.postForPDF(ctx, "/render", payload)
	}, classifyRendererError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("render document", err)
	}

	if err := validatePDF(data); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "validate rendered document", err)
	}
	return data, nil
}

// mergeFields lets admin edits override what the resident submitted.
func mergeFields(job domain.PDFJob) map[string]string {
	fields := make(map[string]string, len(job.ResidentInput)+len(job.AdminEditedContent))
	maps.Copy(fields, job.ResidentInput)
	maps.Copy(fields, job.AdminEditedContent)
	return fields
}
