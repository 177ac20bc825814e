package services

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/formulus/formulus-go/internal/api"
	"github.com/formulus/formulus-go/internal/common"
	"github.com/formulus/formulus-go/internal/filex"
	"github.com/formulus/formulus-go/internal/logging"
	"github.com/formulus/formulus-go/internal/models"
	"github.com/formulus/formulus-go/internal/repositories/metadata"
	"github.com/formulus/formulus-go/internal/store"
)

// BundleService keeps the local copy of the app bundle (form schemas,
// static assets) up to date with the server manifest.
type BundleService struct {
	client  api.Client
	gate    *api.Gate
	meta    metadata.Repository
	schemas *store.SchemaCache
	dir     string
	log     logging.Logger
}

func NewBundleService(
	client api.Client,
	gate *api.Gate,
	meta metadata.Repository,
	schemas *store.SchemaCache,
	dataDir string,
	log logging.Logger,
) (*BundleService, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	dir, err := filex.EnsureSubDir(dataDir, "bundle")
	if err != nil {
		return nil, err
	}
	return &BundleService{
		client:  client,
		gate:    gate,
		meta:    meta,
		schemas: schemas,
		dir:     dir,
		log:     log,
	}, nil
}

// Dir returns the local bundle directory.
func (b *BundleService) Dir() string { return b.dir }

// Version returns the locally installed bundle version, 0 if none.
func (b *BundleService) Version(ctx context.Context) (int64, error) {
	return b.meta.GetInt64(ctx, common.MetaKeyBundleVersion)
}

// Update fetches the manifest and, if its version differs from the installed
// one, downloads every listed file. A failed file does not stop the rest of
// the download; the combined error names every file that failed, and the
// installed version only advances when all files landed.
func (b *BundleService) Update(ctx context.Context) (bool, error) {
	var manifest *models.Manifest
	err := b.gate.Do(ctx, func(ctx context.Context) error {
		var err error
		manifest, err = b.client.GetManifest(ctx)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("manifest fetch failed: %w", err)
	}

	installed, err := b.meta.GetInt64(ctx, common.MetaKeyBundleVersion)
	if err != nil {
		return false, err
	}
	if manifest.Version == installed {
		b.log.Debug(ctx, "bundle up to date", "version", installed)
		return false, nil
	}

	b.log.Info(ctx, "bundle update", "from", installed, "to", manifest.Version, "files", len(manifest.Files))

	var failures error
	for _, f := range manifest.Files {
		dest := filepath.Join(b.dir, filepath.FromSlash(f.Path))
		if _, err := filex.EnsureDir(filepath.Dir(dest)); err != nil {
			failures = multierr.Append(failures, fmt.Errorf("%s: %w", f.Path, err))
			continue
		}
		err := b.gate.Do(ctx, func(ctx context.Context) error {
			return b.client.DownloadFile(ctx, f.Path, dest)
		})
		if err != nil {
			b.log.Warn(ctx, "bundle file download failed", "path", f.Path, "error", err)
			failures = multierr.Append(failures, fmt.Errorf("%s: %w", f.Path, err))
		}
	}
	if failures != nil {
		return false, fmt.Errorf("bundle update incomplete: %w", failures)
	}

	if err := b.meta.SetInt64(ctx, common.MetaKeyBundleVersion, manifest.Version); err != nil {
		return false, err
	}
	b.schemas.Invalidate()
	return true, nil
}

// Clear wipes the local bundle directory and forgets the installed version.
func (b *BundleService) Clear(ctx context.Context) error {
	if err := filex.RemoveAndRecreate(b.dir); err != nil {
		return err
	}
	return b.meta.Delete(ctx, common.MetaKeyBundleVersion)
}
