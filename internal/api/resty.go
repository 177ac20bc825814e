package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/formulus/formulus-go/internal/common"
	"github.com/formulus/formulus-go/internal/models"
	"github.com/go-resty/resty/v2"
)

// RestyClient is the production Client implementation over resty. It is safe
// for use from the single sync flow plus occasional direct calls (login,
// manifest checks); token and base URL updates are mutex-guarded.
type RestyClient struct {
	mu    sync.Mutex
	http  *resty.Client
	token string
}

// NewRestyClient builds a client for the given base URL. Timeout bounds each
// request; the sync pipeline itself carries no intrinsic timeout.
func NewRestyClient(baseURL string, timeout time.Duration) *RestyClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &RestyClient{http: c}
}

func (c *RestyClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *RestyClient) SetBaseURL(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.http.SetBaseURL(url)
}

func (c *RestyClient) request(ctx context.Context) *resty.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	req := c.http.R().SetContext(ctx)
	if c.token != "" {
		req.SetAuthToken(c.token)
	}
	return req
}

// mapError folds transport errors and non-2xx statuses into one error value.
// 401 wraps common.ErrUnauthorized so the auth gate can match it.
func mapError(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", op, common.ErrUnauthorized)
	case resp.StatusCode() >= http.StatusInternalServerError:
		return fmt.Errorf("%s: status %d: %w", op, resp.StatusCode(), common.ErrUnavailable)
	case resp.IsError():
		return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode(), resp.String())
	}
	return nil
}

func (c *RestyClient) GetManifest(ctx context.Context) (*models.Manifest, error) {
	var out models.Manifest
	resp, err := c.request(ctx).SetResult(&out).Get("/manifest")
	if err := mapError("get manifest", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RestyClient) Pull(ctx context.Context, req *models.PullRequest) (*models.PullResponse, error) {
	var out models.PullResponse
	resp, err := c.request(ctx).SetBody(req).SetResult(&out).Post("/sync/pull")
	if err := mapError("sync pull", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RestyClient) Push(ctx context.Context, req *models.PushRequest) (*models.PushResponse, error) {
	var out models.PushResponse
	resp, err := c.request(ctx).SetBody(req).SetResult(&out).Post("/sync/push")
	if err := mapError("sync push", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RestyClient) UploadAttachment(ctx context.Context, name string, path string) error {
	resp, err := c.request(ctx).
		SetFile("file", path).
		SetFormData(map[string]string{"name": name}).
		Post("/attachments")
	return mapError("upload attachment", resp, err)
}

func (c *RestyClient) DownloadFile(ctx context.Context, remotePath string, destPath string) error {
	resp, err := c.request(ctx).
		SetOutput(destPath).
		Get("/files/" + remotePath)
	return mapError("download file", resp, err)
}

func (c *RestyClient) Login(ctx context.Context, creds models.Credentials) (*models.TokenPair, error) {
	var out models.TokenPair
	resp, err := c.request(ctx).SetBody(creds).SetResult(&out).Post("/auth/login")
	if err := mapError("login", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RestyClient) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	var out models.TokenPair
	body := map[string]string{"refreshToken": refreshToken}
	resp, err := c.request(ctx).SetBody(body).SetResult(&out).Post("/auth/refresh")
	if err := mapError("refresh token", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}
