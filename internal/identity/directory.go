// Package identity removes user accounts from the identity provider.
package identity

import (
	"context"
	"fmt"

	"github.com/workos/workos-go/v4/pkg/usermanagement"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 10

// DeleteError describes one identifier that could not be deleted
type DeleteError struct {
	Index  int    `json:"index"`
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

// DeleteResult summarizes a bulk deletion
type DeleteResult struct {
	SuccessCount int           `json:"successCount"`
	FailureCount int           `json:"failureCount"`
	Errors       []DeleteError `json:"errors"`
}

// Directory deletes identity records in bulk. Per-id failures are reported
// in the result; the error is reserved for failures of the call as a whole.
type Directory interface {
	DeleteUsers(ctx context.Context, userIDs []string) (*DeleteResult, error)
}

// UserDeleter is the part of the WorkOS user management client in use
type UserDeleter interface {
	DeleteUser(ctx context.Context, opts usermanagement.DeleteUserOpts) error
}

// WorkOSDirectory deletes users through the WorkOS user management API
type WorkOSDirectory struct {
	client      UserDeleter
	concurrency int
}

// NewWorkOSDirectory creates a directory backed by the WorkOS API.
func NewWorkOSDirectory(apiKey string) *WorkOSDirectory {
	return NewDirectory(usermanagement.NewClient(apiKey), defaultConcurrency)
}

// NewDirectory creates a directory on any user deleter.
func NewDirectory(client UserDeleter, concurrency int) *WorkOSDirectory {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &WorkOSDirectory{client: client, concurrency: concurrency}
}

func (d *WorkOSDirectory) DeleteUsers(ctx context.Context, userIDs []string) (*DeleteResult, error) {
	failures := make([]error, len(userIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, id := range userIDs {
		g.Go(func() error {
			// Each slot is written by exactly one goroutine
			failures[i] = d.client.DeleteUser(gctx, usermanagement.DeleteUserOpts{User: id})
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("identity deletion interrupted: %w", err)
	}

	result := &DeleteResult{Errors: []DeleteError{}}
	for i, err := range failures {
		if err == nil {
			result.SuccessCount++
			continue
		}
		result.FailureCount++
		result.Errors = append(result.Errors, DeleteError{
			Index:  i,
			UserID: userIDs[i],
			Reason: err.Error(),
		})
	}
	return result, nil
}
