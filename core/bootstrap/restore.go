package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/chrischabot/shardeum/core/types"
)

const defaultRestoreBatch = 2000

// Committer persists account copies.
type Committer interface {
	CommitAccountCopies(ctx context.Context, copies []types.AccountCopy) error
}

// RestoreReport summarises a debug restore.
type RestoreReport struct {
	Missing   bool
	Total     int
	Committed int
	Failed    int
}

// Restore loads a JSON array of account copies exported by a previous run
// and commits them in batches of batchSize. A missing file is logged and
// reported, not treated as an error. A batch the committer rejects counts as
// failed and the restore moves on to the next one.
func Restore(ctx context.Context, committer Committer, path string, batchSize int, logger *slog.Logger) (RestoreReport, error) {
	var report RestoreReport
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = defaultRestoreBatch
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("debug restore file not found", slog.String("path", path))
		report.Missing = true
		return report, nil
	}
	if err != nil {
		return report, fmt.Errorf("bootstrap: open restore file: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	tok, err := dec.Token()
	if err != nil {
		return report, fmt.Errorf("bootstrap: read restore file: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return report, fmt.Errorf("bootstrap: restore file %s is not a JSON array", path)
	}

	batch := make([]types.AccountCopy, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := committer.CommitAccountCopies(ctx, batch); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			logger.Error("debug restore batch failed",
				slog.Int("size", len(batch)),
				slog.Any("error", err))
			report.Failed += len(batch)
		} else {
			report.Committed += len(batch)
		}
		batch = make([]types.AccountCopy, 0, batchSize)
		return nil
	}

	for dec.More() {
		var record types.AccountCopy
		if err := dec.Decode(&record); err != nil {
			return report, fmt.Errorf("bootstrap: decode restore record %d: %w", report.Total, err)
		}
		report.Total++
		if record.Data == nil || record.Data.ID != record.AccountID {
			report.Failed++
			continue
		}
		batch = append(batch, record)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return report, err
			}
		}
	}
	if err := flush(); err != nil {
		return report, err
	}
	logger.Info("debug restore complete",
		slog.Int("total", report.Total),
		slog.Int("committed", report.Committed),
		slog.Int("failed", report.Failed))
	return report, nil
}
