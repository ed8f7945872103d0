package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FSUploader is an Uploader that copies artifacts into a local directory and
// returns URLs under a configured base. It stands in for a remote object
// store while keeping the collaborator contract identical.
type FSUploader struct {
	dir     string
	baseURL string
}

var _ Uploader = (*FSUploader)(nil)

// NewFSUploader creates the artifact directory if needed.
func NewFSUploader(dir, baseURL string) (*FSUploader, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	return &FSUploader{dir: dir, baseURL: baseURL}, nil
}

// Upload copies the local file under name and returns its access URL.
func (u *FSUploader) Upload(ctx context.Context, localPath, name string) (UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return UploadResult{Error: err.Error()}, err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return UploadResult{Error: err.Error()}, fmt.Errorf("opening artifact %s: %w", localPath, err)
	}
	defer src.Close()

	dstPath := filepath.Join(u.dir, filepath.Base(name))
	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return UploadResult{Error: err.Error()}, fmt.Errorf("creating stored artifact %s: %w", dstPath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return UploadResult{Error: err.Error()}, fmt.Errorf("copying artifact %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		return UploadResult{Error: err.Error()}, fmt.Errorf("closing stored artifact %s: %w", dstPath, err)
	}

	return UploadResult{URL: u.baseURL + "/" + filepath.Base(name), Success: true}, nil
}
