package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lexfirm/lexcase-api/internal/models"
	appErrors "github.com/lexfirm/lexcase-api/pkg/errors"
	"github.com/lexfirm/lexcase-api/pkg/response"
)

// Gateway is the boundary the manager talks through. The HTTP implementation
// targets the identity API; tests substitute their own.
type Gateway interface {
	Classify(ctx context.Context, identifier string) (*models.ClassifyResult, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Verify(ctx context.Context, sessionToken string) (*models.VerifySessionResponse, error)
	Logout(ctx context.Context, sessionToken string) error
}

// HTTPGateway implements Gateway against the identity API over HTTP.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGateway constructs a gateway for the API at baseURL, e.g.
// "https://identity.lexfirm.example/api/v1".
func NewHTTPGateway(baseURL string, client *http.Client) *HTTPGateway {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPGateway{baseURL: baseURL, client: client}
}

func (g *HTTPGateway) Classify(ctx context.Context, identifier string) (*models.ClassifyResult, error) {
	var result models.ClassifyResult
	if err := g.post(ctx, "/auth/classify", models.ClassifyRequest{Identifier: identifier}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (g *HTTPGateway) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	var result models.LoginResponse
	if err := g.post(ctx, "/auth/login", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (g *HTTPGateway) Verify(ctx context.Context, sessionToken string) (*models.VerifySessionResponse, error) {
	var result models.VerifySessionResponse
	if err := g.post(ctx, "/auth/verify", models.VerifySessionRequest{SessionToken: sessionToken}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (g *HTTPGateway) Logout(ctx context.Context, sessionToken string) error {
	return g.post(ctx, "/auth/logout", models.LogoutRequest{SessionToken: sessionToken}, nil)
}

func (g *HTTPGateway) post(ctx context.Context, path string, payload, dest interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return err
	}

	if res.StatusCode == http.StatusNoContent {
		return nil
	}

	var envelope response.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if res.StatusCode >= http.StatusBadRequest {
		return appErrors.New(appErrors.ErrInternal.Code, res.StatusCode, fmt.Sprintf("unexpected status %d from %s", res.StatusCode, path))
	}
	if dest == nil {
		return nil
	}

	data, err := json.Marshal(envelope.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
