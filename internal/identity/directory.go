package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// OrgMember is a membership record as listed by the provider's backend API.
type OrgMember struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Directory manages organization memberships in the identity provider.
type Directory interface {
	ListMemberships(ctx context.Context, orgID string) ([]OrgMember, error)
	UpdateMembershipRole(ctx context.Context, orgID, userID, role string) (*OrgMember, error)
	DeleteMembership(ctx context.Context, orgID, userID string) error
}

// ErrMembershipNotFound is returned when the provider has no membership for the user.
var ErrMembershipNotFound = errors.New("membership not found")

// APIError is a non-success response from the provider's backend API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity provider: status %d: %s", e.StatusCode, e.Message)
}

// UserMessage returns the provider's message for request validation errors. Auth, rate-limit and
// server errors concern the portal's own credentials or the provider and carry nothing safe to show.
func (e *APIError) UserMessage() string {
	switch e.StatusCode {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return e.Message
	}
	return ""
}

// DirectoryClient talks to the provider's backend API.
type DirectoryClient struct {
	client  *retryablehttp.Client
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

// NewDirectoryClient creates a client for the provider API at baseURL.
func NewDirectoryClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *DirectoryClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryClient{
		client:  newRetryableClient(timeout),
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
	}
}

func newRetryableClient(timeout time.Duration) *retryablehttp.Client {
	return &retryablehttp.Client{
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		},
		RetryWaitMin: 250 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
		RetryMax:     2,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}
}

type listMembershipsResponse struct {
	Data []OrgMember `json:"data"`
}

// ListMemberships returns all memberships of orgID.
func (d *DirectoryClient) ListMemberships(ctx context.Context, orgID string) ([]OrgMember, error) {
	var out listMembershipsResponse
	if err := d.do(ctx, http.MethodGet, d.membershipsURL(orgID, ""), nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// UpdateMembershipRole sets the role label of userID's membership in orgID.
func (d *DirectoryClient) UpdateMembershipRole(ctx context.Context, orgID, userID, role string) (*OrgMember, error) {
	body := map[string]string{"role": role}
	var out OrgMember
	if err := d.do(ctx, http.MethodPatch, d.membershipsURL(orgID, userID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteMembership removes userID from orgID.
func (d *DirectoryClient) DeleteMembership(ctx context.Context, orgID, userID string) error {
	return d.do(ctx, http.MethodDelete, d.membershipsURL(orgID, userID), nil, nil)
}

func (d *DirectoryClient) membershipsURL(orgID, userID string) string {
	u := fmt.Sprintf("%s/v1/organizations/%s/memberships", d.baseURL, url.PathEscape(orgID))
	if userID != "" {
		u += "/" + url.PathEscape(userID)
	}
	return u
}

type apiErrorBody struct {
	Errors []struct {
		Message     string `json:"message"`
		LongMessage string `json:"long_message"`
	} `json:"errors"`
}

func (d *DirectoryClient) do(ctx context.Context, method, u string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// The passthrough error handler hands back the last response once retries are exhausted.
	resp, err := d.client.Do(req)
	if resp == nil {
		if err == nil {
			err = errors.New("empty response")
		}
		return fmt.Errorf("identity provider %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrMembershipNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var eb apiErrorBody
		if json.NewDecoder(resp.Body).Decode(&eb) == nil && len(eb.Errors) > 0 {
			apiErr.Message = eb.Errors[0].Message
			if eb.Errors[0].LongMessage != "" {
				apiErr.Message = eb.Errors[0].LongMessage
			}
		}
		d.logger.Warn("identity provider request failed",
			zap.String("method", method), zap.Int("status", resp.StatusCode), zap.String("message", apiErr.Message))
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
