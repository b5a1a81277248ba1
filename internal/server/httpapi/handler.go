package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/gorilla/mux"
)

const uploadField = "file"

type fileResponse struct {
	ID               string    `json:"id"`
	FileURL          string    `json:"file_url"`
	OriginalFilename string    `json:"original_filename"`
	FileType         string    `json:"file_type"`
	Size             int64     `json:"size"`
	UploadedAt       time.Time `json:"uploaded_at"`
	FileHash         string    `json:"file_hash"`
	IsReference      bool      `json:"is_reference"`
}

func toResponse(f *models.File) fileResponse {
	return fileResponse{
		ID:               f.ID,
		FileURL:          "/api/files/" + url.PathEscape(f.ID) + "/download/",
		OriginalFilename: f.OriginalFilename,
		FileType:         f.ContentType,
		Size:             f.ByteSize,
		UploadedAt:       f.UploadedAt,
		FileHash:         f.Digest,
		IsReference:      !f.IsFirstReference,
	}
}

// uploadFile streams the multipart field "file" into the vault without
// buffering the whole body.
func (s *HTTPServer) uploadFile(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "No file provided")
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeJSONError(w, http.StatusBadRequest, "No file provided")
			return
		}
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "Malformed multipart body")
			return
		}
		if part.FormName() != uploadField {
			_ = part.Close()
			continue
		}

		f, err := s.vault.Upload(r.Context(), ownerFromContext(r.Context()), part.FileName(), part.Header.Get("Content-Type"), part)
		_ = part.Close()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toResponse(f))
		return
	}
}

func (s *HTTPServer) listFiles(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	files, err := s.vault.List(r.Context(), ownerFromContext(r.Context()), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]fileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, toResponse(f))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) getFile(w http.ResponseWriter, r *http.Request) {
	f, err := s.vault.Get(r.Context(), mux.Vars(r)["id"], ownerFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(f))
}

func (s *HTTPServer) downloadFile(w http.ResponseWriter, r *http.Request) {
	f, rc, err := s.vault.Open(r.Context(), mux.Vars(r)["id"], ownerFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(f.ByteSize, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.OriginalFilename}))
	w.Header().Set("ETag", `"`+f.Digest+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn(r.Context(), "download interrupted", "id", f.ID, "error", err)
	}
}

func (s *HTTPServer) deleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.vault.Delete(r.Context(), mux.Vars(r)["id"], ownerFromContext(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) storageStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.vault.Stats(r.Context(), ownerFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *HTTPServer) fileTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.vault.DistinctContentTypes(r.Context(), ownerFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func parseFilter(q url.Values) (models.FileFilter, error) {
	f := models.FileFilter{
		Search:      q.Get("search"),
		ContentType: q.Get("file_type"),
	}
	var err error
	if f.MinSize, err = parseSize(q, "min_size"); err != nil {
		return f, err
	}
	if f.MaxSize, err = parseSize(q, "max_size"); err != nil {
		return f, err
	}
	if f.StartDate, err = parseDate(q, "start_date"); err != nil {
		return f, err
	}
	if f.EndDate, err = parseDate(q, "end_date"); err != nil {
		return f, err
	}
	return f, nil
}

func parseSize(q url.Values, key string) (*int64, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: %s must be a non-negative integer", common.ErrInvalidInput, key)
	}
	return &n, nil
}

// parseDate accepts RFC 3339 timestamps or plain dates (midnight UTC).
func parseDate(q url.Values, key string) (*time.Time, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s must be a date", common.ErrInvalidInput, key)
}
