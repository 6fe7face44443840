// Package source supplies the current set of documentation files to the
// sync pipeline. A source enumerates documents with a stable identity and a
// content fingerprint; everything downstream (diffing, chunking, indexing)
// is driven off that snapshot.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stdpath "path"
	"strings"
)

// Document is one source file as seen during a single sync pass. Instances
// are immutable; a later pass produces a fresh snapshot rather than mutating
// an earlier one.
type Document struct {
	// ID is the stable identity of the document, the forward-slash relative
	// path within the corpus (e.g. "guides/sso-setup.md").
	ID string

	// Title is a human-readable name, usually the first heading.
	Title string

	// Content is the extracted text content.
	Content string

	// Fingerprint is a deterministic hash of the content version: sha256 of
	// the raw bytes for filesystem sources, the git blob SHA for GitHub.
	Fingerprint string

	// Link is the public URL of the rendered page, when derivable.
	Link string
}

// Source enumerates the documents of a corpus.
type Source interface {
	Documents(ctx context.Context) ([]Document, error)
}

// Fingerprint hashes raw document bytes.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DocLink derives the public page URL for a document ID: the base URL joined
// with the path minus its extension. Returns "" when no base is configured.
func DocLink(baseURL, id string) string {
	if baseURL == "" {
		return ""
	}
	trimmed := strings.TrimSuffix(id, stdpath.Ext(id))
	return strings.TrimRight(baseURL, "/") + "/" + trimmed + "/"
}

// ExtractTitle returns the first markdown heading, or the fallback when the
// content has none.
func ExtractTitle(content, fallback string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
	}
	return fallback
}
