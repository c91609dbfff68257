package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oddsworks/bigsmall/internal/domain"
)

// Archiver copies finished rounds from the primary store into S3 as
// month-partitioned JSONL files. The primary store remains the source of
// truth; the cold archive exists for analytics and long-term retention, so
// records are never deleted here.
type Archiver struct {
	writer   domain.BlobWriter
	rounds   domain.RoundStore
	audit    domain.AuditStore
	prefix   string
	interval time.Duration
	logger   *slog.Logger
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(
	writer domain.BlobWriter,
	rounds domain.RoundStore,
	audit domain.AuditStore,
	prefix string,
	interval time.Duration,
	logger *slog.Logger,
) *Archiver {
	if prefix == "" {
		prefix = "archive/rounds"
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Archiver{
		writer:   writer,
		rounds:   rounds,
		audit:    audit,
		prefix:   prefix,
		interval: interval,
		logger:   logger,
	}
}

// Run archives on a fixed interval until the context is cancelled. Each tick
// covers the window since the previous successful tick; a failed window is
// retried in full on the next tick.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	since := time.Now().UTC().Add(-a.interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			until := time.Now().UTC()
			count, err := a.ArchiveRounds(ctx, since, until)
			if err != nil {
				a.logger.ErrorContext(ctx, "archiver: archive rounds",
					slog.String("error", err.Error()),
				)
				continue
			}
			if count > 0 {
				a.logger.InfoContext(ctx, "archiver: rounds archived",
					slog.Int64("count", count),
					slog.Time("since", since),
					slog.Time("until", until),
				)
			}
			since = until
		}
	}
}

// ArchiveRounds uploads every round finished in [since, until) to S3 and
// records the upload in the audit log. It returns the number of rounds
// archived.
func (a *Archiver) ArchiveRounds(ctx context.Context, since, until time.Time) (int64, error) {
	rounds, err := a.rounds.ListFinishedBetween(ctx, since, until)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive rounds query: %w", err)
	}
	if len(rounds) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(rounds)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive rounds marshal: %w", err)
	}

	path := a.archivePath(until)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive rounds upload: %w", err)
	}

	count := int64(len(rounds))

	if a.audit != nil {
		err := a.audit.Log(ctx, "archive.rounds", map[string]any{
			"path":  path,
			"count": count,
			"since": since.Format(time.RFC3339),
			"until": until.Format(time.RFC3339),
		})
		if err != nil {
			return count, fmt.Errorf("s3blob: archive rounds audit log: %w", err)
		}
	}

	return count, nil
}

// archivePath builds the S3 key for an archive file. Keys carry a year-month
// partition directory plus the window end, so successive windows within a
// month never overwrite each other.
//
//	archive/rounds/2026-08/20260826T120000Z.jsonl
func (a *Archiver) archivePath(until time.Time) string {
	return fmt.Sprintf("%s/%s/%s.jsonl", a.prefix, until.Format("2006-01"), until.Format("20060102T150405Z"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
