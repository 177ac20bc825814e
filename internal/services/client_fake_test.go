package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/formulus/formulus-go/internal/models"
	"github.com/formulus/formulus-go/internal/storage"
)

// fakeClient implements api.Client with per-call hooks and counters.
type fakeClient struct {
	manifestFn func(ctx context.Context) (*models.Manifest, error)
	pullFn     func(ctx context.Context, req *models.PullRequest) (*models.PullResponse, error)
	pushFn     func(ctx context.Context, req *models.PushRequest) (*models.PushResponse, error)
	uploadFn   func(ctx context.Context, name string, path string) error
	downloadFn func(ctx context.Context, remotePath string, destPath string) error
	loginFn    func(ctx context.Context, creds models.Credentials) (*models.TokenPair, error)
	refreshFn  func(ctx context.Context, refreshToken string) (*models.TokenPair, error)

	pulls     int
	pushes    int
	uploads   int
	downloads int
	logins    int
	refreshes int

	token   string
	baseURL string
}

func (f *fakeClient) GetManifest(ctx context.Context) (*models.Manifest, error) {
	return f.manifestFn(ctx)
}

func (f *fakeClient) Pull(ctx context.Context, req *models.PullRequest) (*models.PullResponse, error) {
	f.pulls++
	return f.pullFn(ctx, req)
}

func (f *fakeClient) Push(ctx context.Context, req *models.PushRequest) (*models.PushResponse, error) {
	f.pushes++
	return f.pushFn(ctx, req)
}

func (f *fakeClient) UploadAttachment(ctx context.Context, name string, path string) error {
	f.uploads++
	return f.uploadFn(ctx, name, path)
}

func (f *fakeClient) DownloadFile(ctx context.Context, remotePath string, destPath string) error {
	f.downloads++
	return f.downloadFn(ctx, remotePath, destPath)
}

func (f *fakeClient) Login(ctx context.Context, creds models.Credentials) (*models.TokenPair, error) {
	f.logins++
	return f.loginFn(ctx, creds)
}

func (f *fakeClient) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	f.refreshes++
	return f.refreshFn(ctx, refreshToken)
}

func (f *fakeClient) SetToken(token string) { f.token = token }
func (f *fakeClient) SetBaseURL(url string) { f.baseURL = url }

func setupStorage(t *testing.T) *storage.Storage {
	t.Helper()
	st, err := storage.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.DB.Close() })
	return st
}
