package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oddsworks/bigsmall/internal/domain"
)

// ArchiveHandler lets the authority browse and download the cold archive of
// finished rounds. Registered only when the S3 archive is enabled.
type ArchiveHandler struct {
	blobs  domain.BlobReader
	prefix string
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler rooted at the given key prefix.
func NewArchiveHandler(blobs domain.BlobReader, prefix string, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		blobs:  blobs,
		prefix: prefix,
		logger: logger,
	}
}

// listArchiveResponse wraps the archive listing.
type listArchiveResponse struct {
	Objects []domain.BlobInfo `json:"objects"`
}

// List returns metadata for every archived batch under the configured prefix.
// GET /api/archive
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	objects, err := h.blobs.List(r.Context(), h.prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archive failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archive")
		return
	}
	if objects == nil {
		objects = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, listArchiveResponse{Objects: objects})
}

// Download streams one archived batch. The key is taken relative to the
// configured prefix; traversal outside it is rejected.
// GET /api/archive/{key...}
func (h *ArchiveHandler) Download(w http.ResponseWriter, r *http.Request) {
	key := pathParam(r, "key")
	if key == "" || strings.Contains(key, "..") {
		writeError(w, http.StatusBadRequest, "invalid archive key")
		return
	}

	body, err := h.blobs.Get(r.Context(), h.prefix+"/"+key)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "handler: archive download interrupted",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
