package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FilesystemSource walks a local directory tree and yields every supported
// document beneath it. Identity is the forward-slash relative path, the
// fingerprint is the sha256 of the raw file bytes.
type FilesystemSource struct {
	root       string
	webBaseURL string
}

func NewFilesystemSource(root, webBaseURL string) *FilesystemSource {
	return &FilesystemSource{root: root, webBaseURL: webBaseURL}
}

func (s *FilesystemSource) Documents(ctx context.Context) ([]Document, error) {
	if _, err := os.Stat(s.root); err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}

	var docs []Document
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || DetectFormat(path) == FormatUnknown {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			relPath = path
		}
		id := filepath.ToSlash(relPath)

		content, err := ExtractText(path, data)
		if err != nil {
			return fmt.Errorf("extract %s: %w", id, err)
		}

		docs = append(docs, Document{
			ID:          id,
			Title:       ExtractTitle(content, filepath.Base(path)),
			Content:     content,
			Fingerprint: Fingerprint(data),
			Link:        DocLink(s.webBaseURL, id),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk data directory: %w", err)
	}

	return docs, nil
}

var _ Source = (*FilesystemSource)(nil)
