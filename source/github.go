package source

import (
	"context"
	"fmt"
	stdpath "path"
	"strings"

	"github.com/google/go-github/v68/github"
)

// GitHubSource enumerates the markdown files of a repository subtree using
// the git tree API. The git blob SHA serves as the content fingerprint, so
// unchanged files are skipped by the sync engine without fetching their
// blobs at all.
type GitHubSource struct {
	client     *github.Client
	owner      string
	repo       string
	ref        string
	pathPrefix string
	webBaseURL string
}

// GitHubOptions configures a GitHubSource.
type GitHubOptions struct {
	Repo       string // "owner/name"
	Ref        string
	PathPrefix string // subtree to index, e.g. "en/docs"
	Token      string
	WebBaseURL string
}

func NewGitHubSource(opts GitHubOptions) (*GitHubSource, error) {
	client := github.NewClient(nil)
	if opts.Token != "" {
		client = client.WithAuthToken(opts.Token)
	}
	return NewGitHubSourceWithClient(client, opts)
}

// NewGitHubSourceWithClient allows injecting a pre-configured client, used
// by tests to point at a stub API server.
func NewGitHubSourceWithClient(client *github.Client, opts GitHubOptions) (*GitHubSource, error) {
	owner, repo, ok := strings.Cut(opts.Repo, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("repository must be in owner/name form, got %q", opts.Repo)
	}

	ref := opts.Ref
	if ref == "" {
		ref = "master"
	}

	return &GitHubSource{
		client:     client,
		owner:      owner,
		repo:       repo,
		ref:        ref,
		pathPrefix: strings.Trim(opts.PathPrefix, "/"),
		webBaseURL: opts.WebBaseURL,
	}, nil
}

func (s *GitHubSource) Documents(ctx context.Context) ([]Document, error) {
	tree, _, err := s.client.Git.GetTree(ctx, s.owner, s.repo, s.ref, true)
	if err != nil {
		return nil, fmt.Errorf("get git tree %s/%s@%s: %w", s.owner, s.repo, s.ref, err)
	}

	var docs []Document
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		path := entry.GetPath()
		if !s.includes(path) {
			continue
		}

		data, _, err := s.client.Git.GetBlobRaw(ctx, s.owner, s.repo, entry.GetSHA())
		if err != nil {
			return nil, fmt.Errorf("get blob %s: %w", path, err)
		}

		id := s.relative(path)
		content, err := ExtractText(path, data)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", id, err)
		}

		docs = append(docs, Document{
			ID:          id,
			Title:       ExtractTitle(content, stdpath.Base(path)),
			Content:     content,
			Fingerprint: entry.GetSHA(),
			Link:        DocLink(s.webBaseURL, id),
		})
	}

	return docs, nil
}

func (s *GitHubSource) includes(path string) bool {
	if DetectFormat(path) != FormatMarkdown {
		return false
	}
	if s.pathPrefix == "" {
		return true
	}
	return strings.HasPrefix(path, s.pathPrefix+"/")
}

func (s *GitHubSource) relative(path string) string {
	if s.pathPrefix == "" {
		return path
	}
	return strings.TrimPrefix(path, s.pathPrefix+"/")
}

var _ Source = (*GitHubSource)(nil)
