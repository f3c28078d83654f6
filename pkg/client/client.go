package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/propdesk/propdesk/internal/models"
)

// Client is a Go SDK for the propdesk API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new propdesk client. apiKey is only needed for moderation calls.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is returned for non-2xx responses
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error %d: %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// OfferQuery holds listing parameters
type OfferQuery struct {
	Search        string
	ChallengeType string
	AccountSize   string
	Sort          string
	Direction     string
	Favorites     []string
}

// OfferList is a filtered and sorted offer listing
type OfferList struct {
	Offers []models.Offer `json:"offers"`
	Total  int            `json:"total"`
}

// File is an attachment to upload with a review
type File struct {
	Name    string
	Content io.Reader
}

// ReviewSubmission is the review form
type ReviewSubmission struct {
	CompanyID         string
	UserID            string
	AccountSize       string
	AccountType       string
	TradingDuration   string
	FundedStatus      string
	PayoutStatus      string
	ReviewText        string
	Pros              string
	Cons              string
	ReportIssue       bool
	ReportDescription string
	Ratings           map[string]float64

	ProofFile       *File
	FundedProofFile *File
	PayoutProofFile *File
	ProofFiles      []File
}

// SubmitResult is the response to a submission
type SubmitResult struct {
	Success      bool     `json:"success"`
	ReviewID     string   `json:"reviewId"`
	ReviewNumber int      `json:"reviewNumber"`
	Message      string   `json:"message"`
	SkippedFiles []string `json:"skippedFiles,omitempty"`
}

// ReviewListOptions contains options for listing reviews
type ReviewListOptions struct {
	CompanyID string
	Status    models.ReviewStatus
	Limit     int
	Offset    int
}

// ListOffers returns the offer listing
func (c *Client) ListOffers(ctx context.Context, q OfferQuery) (*OfferList, error) {
	params := url.Values{}
	setParam(params, "search", q.Search)
	setParam(params, "challengeType", q.ChallengeType)
	setParam(params, "accountSize", q.AccountSize)
	setParam(params, "sort", q.Sort)
	setParam(params, "dir", q.Direction)
	if len(q.Favorites) > 0 {
		params.Set("favorites", strings.Join(q.Favorites, ","))
	}

	path := "/api/v1/offers"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	resp, err := c.doRequest(ctx, "GET", path, "", nil)
	if err != nil {
		return nil, err
	}

	var list OfferList
	if err := decodeData(resp, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// SubmitReview uploads a review with its attachments
func (c *Client) SubmitReview(ctx context.Context, sub ReviewSubmission) (*SubmitResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"companyId", sub.CompanyID},
		{"userId", sub.UserID},
		{"accountSize", sub.AccountSize},
		{"accountType", sub.AccountType},
		{"tradingDuration", sub.TradingDuration},
		{"fundedStatus", sub.FundedStatus},
		{"payoutStatus", sub.PayoutStatus},
		{"reviewText", sub.ReviewText},
		{"pros", sub.Pros},
		{"cons", sub.Cons},
		{"reportIssue", strconv.FormatBool(sub.ReportIssue)},
		{"reportDescription", sub.ReportDescription},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", f.name, err)
		}
	}

	if len(sub.Ratings) > 0 {
		ratings, err := json.Marshal(sub.Ratings)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal ratings: %w", err)
		}
		if err := w.WriteField("ratings", string(ratings)); err != nil {
			return nil, fmt.Errorf("failed to write ratings: %w", err)
		}
	}

	singular := []struct {
		field string
		file  *File
	}{
		{"proofFile", sub.ProofFile},
		{"fundedProofFile", sub.FundedProofFile},
		{"payoutProofFile", sub.PayoutProofFile},
	}
	for _, s := range singular {
		if s.file == nil {
			continue
		}
		if err := writeFile(w, s.field, *s.file); err != nil {
			return nil, err
		}
	}
	for _, f := range sub.ProofFiles {
		if err := writeFile(w, "proofFiles", f); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	resp, err := c.doRequest(ctx, "POST", "/api/v1/reviews", w.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}

	var result SubmitResult
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// ListReviews lists reviews for moderation
func (c *Client) ListReviews(ctx context.Context, opts ReviewListOptions) ([]*models.Review, error) {
	params := url.Values{}
	setParam(params, "company_id", opts.CompanyID)
	setParam(params, "status", string(opts.Status))
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}

	path := "/api/v1/admin/reviews"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	resp, err := c.doRequest(ctx, "GET", path, "", nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		Reviews []*models.Review `json:"reviews"`
	}
	if err := decodeData(resp, &data); err != nil {
		return nil, err
	}
	return data.Reviews, nil
}

// GetReview gets a review by ID
func (c *Client) GetReview(ctx context.Context, id string) (*models.Review, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/v1/admin/reviews/"+url.PathEscape(id), "", nil)
	if err != nil {
		return nil, err
	}

	var rv models.Review
	if err := decodeData(resp, &rv); err != nil {
		return nil, err
	}
	return &rv, nil
}

// SetReviewStatus approves or rejects a pending review
func (c *Client) SetReviewStatus(ctx context.Context, id string, status models.ReviewStatus) (*models.Review, error) {
	body, err := json.Marshal(models.UpdateReviewStatusRequest{Status: status})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, "POST", "/api/v1/admin/reviews/"+url.PathEscape(id)+"/status", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var rv models.Review
	if err := decodeData(resp, &rv); err != nil {
		return nil, err
	}
	return &rv, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, "GET", "/health", "", nil)
	return err
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		var env envelope
		if json.Unmarshal(respBody, &env) == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return nil, apiErr
	}

	return respBody, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeData(body []byte, out interface{}) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if !env.Success {
		if env.Error != nil {
			return fmt.Errorf("API error: %s - %s", env.Error.Code, env.Error.Message)
		}
		return fmt.Errorf("API error: unsuccessful response")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}

func writeFile(w *multipart.Writer, field string, f File) error {
	part, err := w.CreateFormFile(field, f.Name)
	if err != nil {
		return fmt.Errorf("failed to create part %s: %w", field, err)
	}
	if _, err := io.Copy(part, f.Content); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.Name, err)
	}
	return nil
}

func setParam(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}
