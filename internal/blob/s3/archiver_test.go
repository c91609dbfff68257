package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"

	"github.com/oddsworks/bigsmall/internal/domain"
	"github.com/oddsworks/bigsmall/internal/store/memory"
)

// captureWriter records uploads in memory.
type captureWriter struct {
	path        string
	contentType string
	data        []byte
	puts        int
}

func (w *captureWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.path = path
	w.contentType = contentType
	w.data = buf
	w.puts++
	return nil
}

func finishedRound(id int64, at time.Time) domain.Round {
	return domain.Round{
		ID:         id,
		State:      domain.StateFinished,
		Result:     domain.ResultBig,
		CreatedAt:  at.Add(-time.Minute),
		FinishedAt: &at,
	}
}

func TestArchiveRounds(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRoundStore()
	writer := &captureWriter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	check.Nil(t, store.Archive(ctx, finishedRound(1, base.Add(10*time.Minute))))
	check.Nil(t, store.Archive(ctx, finishedRound(2, base.Add(20*time.Minute))))
	// Outside the window.
	check.Nil(t, store.Archive(ctx, finishedRound(3, base.Add(2*time.Hour))))

	a := NewArchiver(writer, store, nil, "archive/rounds", time.Hour, logger)
	count, err := a.ArchiveRounds(ctx, base, base.Add(time.Hour))
	check.Nil(t, err)
	check.Equal(t, int64(2), count)

	check.True(t, strings.HasPrefix(writer.path, "archive/rounds/2026-08/"))
	check.True(t, strings.HasSuffix(writer.path, ".jsonl"))
	check.Equal(t, "application/x-ndjson", writer.contentType)

	lines := bytes.Split(bytes.TrimSpace(writer.data), []byte("\n"))
	check.Equal(t, 2, len(lines))

	var first domain.Round
	check.Nil(t, json.Unmarshal(lines[0], &first))
	check.Equal(t, int64(1), first.ID)
	check.Equal(t, domain.StateFinished, first.State)
}

func TestArchiveRoundsEmptyWindowSkipsUpload(t *testing.T) {
	ctx := context.Background()
	writer := &captureWriter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a := NewArchiver(writer, memory.NewRoundStore(), nil, "", time.Hour, logger)
	count, err := a.ArchiveRounds(ctx, time.Now().Add(-time.Hour), time.Now())
	check.Nil(t, err)
	check.Equal(t, int64(0), count)
	check.Equal(t, 0, writer.puts)
}
