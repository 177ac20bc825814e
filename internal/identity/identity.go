// Package identity resolves the stable per-device client id that tags
// observations and scopes sync cursors on the server.
package identity

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/formulus/formulus-go/internal/common"
	"github.com/formulus/formulus-go/internal/repositories/metadata"
	"github.com/google/uuid"
)

const defaultMachineIDPath = "/etc/machine-id"

// Provider derives a namespaced, stable device identifier. The id is read
// from the platform machine id when available; otherwise a uuid is generated
// once and persisted in the metadata table so the server keeps recognizing
// the device across restarts.
type Provider struct {
	meta          metadata.Repository
	machineIDPath string

	mu     sync.Mutex
	cached string
}

func NewProvider(meta metadata.Repository) *Provider {
	return &Provider{meta: meta, machineIDPath: defaultMachineIDPath}
}

// NewProviderWithPath overrides the machine-id file location. Used by tests.
func NewProviderWithPath(meta metadata.Repository, machineIDPath string) *Provider {
	return &Provider{meta: meta, machineIDPath: machineIDPath}
}

// ClientID returns the device id, resolving it on first call and caching it
// in memory afterwards.
func (p *Provider) ClientID(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" {
		return p.cached, nil
	}

	raw, err := p.resolve(ctx)
	if err != nil {
		return "", err
	}

	p.cached = common.ClientIDPrefix + raw
	return p.cached, nil
}

func (p *Provider) resolve(ctx context.Context) (string, error) {
	if b, err := os.ReadFile(p.machineIDPath); err == nil {
		if id := strings.TrimSpace(string(b)); id != "" {
			return id, nil
		}
	}

	// No platform id: fall back to a uuid persisted once in metadata.
	stored, err := p.meta.Get(ctx, common.MetaKeyClientID)
	if err != nil {
		return "", fmt.Errorf("failed to load stored client id: %w", err)
	}
	if len(stored) > 0 {
		return string(stored), nil
	}

	id := uuid.NewString()
	if err := p.meta.Set(ctx, common.MetaKeyClientID, []byte(id)); err != nil {
		return "", fmt.Errorf("failed to persist client id: %w", err)
	}
	return id, nil
}
