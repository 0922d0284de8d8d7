package kaleido

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	exportCSVPath = "/records/export/csv"

	// exportPollAttempts and exportPollDelay bound the PullDataWithRetry
	// polling loop while the server assembles a large export.
	exportPollAttempts = 10
	exportPollDelay    = 3 * time.Second
)

// ExportsService downloads record data as files.
type ExportsService struct {
	client *Client

	// pollDelay overrides the delay between download attempts. Zero means
	// exportPollDelay.
	pollDelay time.Duration
}

// PullData exports the records matching query as a CSV file saved at
// downloadPath, and returns the saved path.
func (s *ExportsService) PullData(ctx context.Context, downloadPath string, query SearchRecordsQuery) (string, error) {
	params, err := query.values()
	if err != nil {
		return "", fmt.Errorf("building export params: %w", err)
	}

	path, err := s.client.GetFile(ctx, exportCSVPath, downloadPath, params)
	if err != nil {
		return "", fmt.Errorf("exporting records to %s: %w", downloadPath, err)
	}
	return path, nil
}

// PullDataWithRetry polls PullData until the export is ready. While the
// server is still assembling the export it answers with a JSON status body,
// which the download path rejects as an invalid content type; only that
// rejection is retried. Each individual download attempt stays a single
// HTTP call.
func (s *ExportsService) PullDataWithRetry(ctx context.Context, downloadPath string, query SearchRecordsQuery) (string, error) {
	delay := s.pollDelay
	if delay == 0 {
		delay = exportPollDelay
	}

	var path string
	err := retry.Do(
		func() error {
			var pullErr error
			path, pullErr = s.PullData(ctx, downloadPath, query)
			return pullErr
		},
		retry.Context(ctx),
		retry.Attempts(exportPollAttempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrInvalidContentType)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("waiting for export: %w", err)
	}
	return path, nil
}
