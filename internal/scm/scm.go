// Package scm implements the HTTP client for the source-control server's
// REST API. It fetches unified diffs and author metadata for commits and
// pull requests using bearer token authentication.
package scm

import "context"

// Author identifies who wrote a change. Email may be empty when the server
// cannot provide one; callers treat that as name-only, not an error.
type Author struct {
	Name  string
	Email string
}

// Client is the source-control server surface the review pipeline uses.
// All operations honor context cancellation and the configured per-request
// timeout.
type Client interface {
	// FetchCommitDiff returns the unified diff for a single commit.
	FetchCommitDiff(ctx context.Context, projectKey, repoSlug, commitID string) (string, error)

	// FetchMergeRequestDiff returns the unified diff for a pull request.
	FetchMergeRequestDiff(ctx context.Context, projectKey, repoSlug string, mrID int64) (string, error)

	// FetchCommitAuthor resolves the author of a commit. A missing email
	// yields a name-only Author, not an error.
	FetchCommitAuthor(ctx context.Context, projectKey, repoSlug, commitID string) (Author, error)

	// FetchMergeRequestAuthor resolves the author of a pull request.
	FetchMergeRequestAuthor(ctx context.Context, projectKey, repoSlug string, mrID int64) (Author, error)

	// Ping verifies connectivity and credentials against the server.
	Ping(ctx context.Context) error

	// BaseURL returns the configured server base URL.
	BaseURL() string
}
