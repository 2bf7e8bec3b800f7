package api

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/csvmerge/internal/adapters/codec"
	service "github.com/okian/csvmerge/internal/app"
	"github.com/okian/csvmerge/pkg/logger"
	"github.com/okian/csvmerge/pkg/metrics"
)

const (
	defaultMaxUploadBytes = 32 << 20
	multipartMemory       = 8 << 20

	// Multipart part names of the two uploads.
	dailyPart     = "daily.csv"
	companiesPart = "companies.csv"

	// IDHeader carries the stored record id on a merge response.
	IDHeader = "Id"
)

// FilesHandler serves merge uploads and stored records.
type FilesHandler struct {
	svc            MergeService
	maxUploadBytes int64
}

// NewFilesHandler creates a new files handler.
func NewFilesHandler(svc MergeService, maxUploadBytes int64) *FilesHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &FilesHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// HandleCreate handles POST /files: merge the two uploads and return the
// merged series as an attachment.
func (h *FilesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_merge"
	if r.ContentLength > h.maxUploadBytes {
		fail(w, r, NewKind(op, ErrTooLarge))
		return
	}
	if r.ContentLength > 0 {
		metrics.RecordUploadBytes(r.ContentLength)
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			fail(w, r, WrapKind(op, ErrTooLarge, err))
			return
		}
		fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	form := bindMergeForm(r)
	if err := form.validate(); err != nil {
		fail(w, r, Wrap(op, err))
		return
	}
	format, err := codec.ParseFormat(form.Format)
	if err != nil {
		fail(w, r, Wrap(op, err))
		return
	}

	daily, err := readTable(r, dailyPart, form.hasHeader())
	if err != nil {
		fail(w, r, Wrap(op, err))
		return
	}
	companies, err := readTable(r, companiesPart, form.hasHeader())
	if err != nil {
		fail(w, r, Wrap(op, err))
		return
	}

	out, err := h.svc.CreateMerge(r.Context(), service.Request{
		StartDate: form.StartDate,
		EndDate:   form.EndDate,
		Lag:       form.N,
		Format:    format,
		Daily:     daily,
		Companies: companies,
		SenderIP:  senderIP(r),
		RequestID: logger.RequestID(r.Context()),
	})
	if err != nil {
		fail(w, r, Wrap(op, err))
		return
	}

	var body bytes.Buffer
	if err := format.Encode(&body, out.Rows); err != nil {
		fail(w, r, Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": format.Filename()}))
	w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
	w.Header().Set(IDHeader, strconv.FormatInt(out.ID, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body.Bytes())
}

// readTable decodes one uploaded part. The part's filename picks CSV or XLSX.
func readTable(r *http.Request, part string, skipHeader bool) ([][]string, error) {
	file, hdr, err := r.FormFile(part)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, fmt.Errorf("%w: %s", ErrMissingFile, part)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadRequest, part, err)
	}
	defer func() { _ = file.Close() }()

	name := hdr.Filename
	if name == "" {
		name = part
	}
	return codec.Decode(name, file, codec.WithSkipHeader(skipHeader))
}

// HandleGet handles GET|POST /files/{id}.
func (h *FilesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_record"
	id, err := recordID(r)
	if err != nil {
		fail(w, r, Wrap(op, err))
		return
	}
	rec, err := h.svc.GetRecord(r.Context(), id)
	if err != nil {
		fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleDelete handles DELETE /files/{id} and returns the removed record.
func (h *FilesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_record"
	id, err := recordID(r)
	if err != nil {
		fail(w, r, Wrap(op, err))
		return
	}
	rec, err := h.svc.DeleteRecord(r.Context(), id)
	if err != nil {
		fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func recordID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRecord, raw)
	}
	return id, nil
}
