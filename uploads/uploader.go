package uploads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	apperror "github.com/Yulian302/lfusys-client/errors"
	"github.com/Yulian302/lfusys-client/logging"
	"github.com/Yulian302/lfusys-client/uploads/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	MaxFileSize        int64 = 2 * 1024 * 1024 * 1024
	DefaultContentType       = "application/octet-stream"

	initiatePath = "/api/files/multipart/initiate"
	abortTimeout = 30 * time.Second
)

// Doer sends one API request; see auth.Client.
type Doer interface {
	Do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error)
}

// TokenPinner is implemented by transports that can fix the bearer token for
// all requests made under a context. The uploader pins the token at start so
// the abort is authenticated like the rest of the upload.
type TokenPinner interface {
	PinToken(ctx context.Context) (context.Context, error)
}

// DirectDoer is implemented by transports that can bypass their admission
// control (a circuit breaker). The abort is sent through it when available.
type DirectDoer interface {
	DoDirect(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error)
}

// ProgressFunc receives the integer percentage of acknowledged parts.
type ProgressFunc func(percentage int)

// UploadError is returned for every failure that reached the network. Its
// message is the server's (or a synthesized "Request failed with status N");
// errors.Is matches Kind and errors.As reaches the underlying error.
type UploadError struct {
	Kind       error
	UploadID   string
	PartNumber int
	Err        error
}

func (e *UploadError) Error() string {
	return e.Err.Error()
}

func (e *UploadError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Uploader drives the initiate / upload parts / complete protocol. It holds
// no per-upload state, so one Uploader serves concurrent calls.
type Uploader struct {
	client Doer
	logger *slog.Logger
	tracer trace.Tracer

	// MaxFileSize overrides the 2 GiB limit when positive.
	MaxFileSize int64

	// OnStateChange, when set, observes every state transition. It may be
	// called from concurrent uploads.
	OnStateChange func(t Transition)
}

func NewUploader(client Doer, logger *slog.Logger) *Uploader {
	return &Uploader{
		client: client,
		logger: logger,
		tracer: otel.Tracer("github.com/Yulian302/lfusys-client/uploads"),
	}
}

func (u *Uploader) maxFileSize() int64 {
	if u.MaxFileSize > 0 {
		return u.MaxFileSize
	}
	return MaxFileSize
}

// UploadInChunks uploads src part by part. Once the server has issued an
// upload id, any failure sends exactly one abort request before the original
// error is returned.
func (u *Uploader) UploadInChunks(ctx context.Context, src Source, onProgress ProgressFunc) (result *types.UploadResult, err error) {
	if src.Size() > u.maxFileSize() {
		return nil, apperror.ErrFileTooLarge
	}

	ctx, span := u.tracer.Start(ctx, "uploads.UploadInChunks", trace.WithAttributes(
		attribute.String("file.name", src.Name()),
		attribute.Int64("file.size", src.Size()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if p, ok := u.client.(TokenPinner); ok {
		if ctx, err = p.PinToken(ctx); err != nil {
			return nil, &UploadError{Kind: apperror.ErrInitiationFailed, Err: err}
		}
	}

	s := &session{
		uploader: u,
		src:      src,
		logger:   logging.FromContext(ctx, u.logger).With(slog.String("file", src.Name())),
		span:     span,
	}

	if err := s.initiate(ctx); err != nil {
		return nil, s.fail(ctx, err)
	}

	for n := 1; n <= s.totalParts; n++ {
		if err := s.uploadPart(ctx, n); err != nil {
			return nil, s.fail(ctx, err)
		}
		if onProgress != nil {
			onProgress(Percentage(n, s.totalParts))
		}
	}

	result, err = s.complete(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	s.transition(StateDone, 0)
	s.logger.Info("upload completed",
		slog.String("upload_id", s.uploadID),
		slog.String("file_id", result.File.ID),
		slog.Int("parts", s.totalParts),
	)
	return result, nil
}

// PartRange returns the byte range [start, end) of 1-based part n. The last
// part is clamped to size.
func PartRange(n int, chunkSize, size int64) (start, end int64) {
	start = int64(n-1) * chunkSize
	if start > size {
		start = size
	}
	end = start + chunkSize
	if end > size {
		end = size
	}
	return start, end
}

// Percentage is round(done/total*100).
func Percentage(done, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}

// session is the state of one UploadInChunks call.
type session struct {
	uploader *Uploader
	src      Source
	logger   *slog.Logger
	span     trace.Span

	state      State
	uploadID   string
	chunkSize  int64
	totalParts int
	parts      []types.PartReceipt
}

func (s *session) transition(to State, part int) {
	from := s.state
	s.state = to
	if s.uploader.OnStateChange != nil {
		s.uploader.OnStateChange(Transition{
			UploadID:   s.uploadID,
			From:       from,
			To:         to,
			PartNumber: part,
		})
	}
}

func (s *session) initiate(ctx context.Context) error {
	s.transition(StateInitiating, 0)

	contentType := s.src.ContentType()
	if contentType == "" {
		contentType = DefaultContentType
	}
	body, err := json.Marshal(types.InitiateRequest{
		Filename:    s.src.Name(),
		ContentType: contentType,
		TotalSize:   s.src.Size(),
	})
	if err != nil {
		return s.wrap(apperror.ErrInitiationFailed, 0, err)
	}

	var out types.InitiateResponse
	if _, err := s.send(ctx, http.MethodPost, initiatePath, bytes.NewReader(body), "application/json", &out); err != nil {
		return s.wrap(apperror.ErrInitiationFailed, 0, err)
	}
	if out.UploadID == "" {
		return s.wrap(apperror.ErrInitiationFailed, 0, errors.New("initiate response has no upload_id"))
	}

	s.uploadID = out.UploadID
	s.chunkSize = out.ChunkSize
	s.totalParts = out.TotalParts
	s.parts = make([]types.PartReceipt, 0, max(out.TotalParts, 0))
	s.span.SetAttributes(
		attribute.String("upload.id", s.uploadID),
		attribute.Int64("upload.chunk_size", s.chunkSize),
		attribute.Int("upload.total_parts", s.totalParts),
	)

	// the session exists server side from here on, so these fail through abort
	if out.ChunkSize <= 0 {
		return s.wrap(apperror.ErrInitiationFailed, 0, fmt.Errorf("invalid chunk_size %d", out.ChunkSize))
	}
	if out.TotalParts < 0 {
		return s.wrap(apperror.ErrInitiationFailed, 0, fmt.Errorf("invalid total_parts %d", out.TotalParts))
	}

	s.logger.Info("upload initiated",
		slog.String("upload_id", s.uploadID),
		slog.Int64("chunk_size", s.chunkSize),
		slog.Int("total_parts", s.totalParts),
	)
	return nil
}

func (s *session) uploadPart(ctx context.Context, n int) error {
	s.transition(StateUploadingPart, n)

	start, end := PartRange(n, s.chunkSize, s.src.Size())

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writePart(mw, io.NewSectionReader(s.src, start, end-start), n))
	}()

	path := fmt.Sprintf("/api/files/multipart/%s/part/%d", url.PathEscape(s.uploadID), n)
	var out types.PartResponse
	if _, err := s.send(ctx, http.MethodPost, path, pr, mw.FormDataContentType(), &out); err != nil {
		return s.wrap(apperror.ErrPartUploadFailed, n, err)
	}

	s.parts = append(s.parts, types.PartReceipt{PartNumber: n, ETag: out.ETag})
	s.span.AddEvent("part uploaded", trace.WithAttributes(
		attribute.Int("part.number", n),
		attribute.Int64("part.size", end-start),
	))
	s.logger.Debug("part uploaded",
		slog.String("upload_id", s.uploadID),
		slog.Int("part_number", n),
		slog.Int64("bytes", end-start),
	)
	return nil
}

// writePart streams one part as the "chunk" form field.
func writePart(mw *multipart.Writer, part io.Reader, n int) error {
	fw, err := mw.CreateFormFile("chunk", "blob")
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, part); err != nil {
		return fmt.Errorf("read part %d: %w", n, err)
	}
	return mw.Close()
}

func (s *session) complete(ctx context.Context) (*types.UploadResult, error) {
	s.transition(StateCompleting, 0)

	body, err := json.Marshal(types.CompleteRequest{Parts: s.parts})
	if err != nil {
		return nil, s.wrap(apperror.ErrCompletionFailed, 0, err)
	}

	path := fmt.Sprintf("/api/files/multipart/%s/complete", url.PathEscape(s.uploadID))
	var result types.UploadResult
	raw, err := s.send(ctx, http.MethodPost, path, bytes.NewReader(body), "application/json", &result)
	if err != nil {
		return nil, s.wrap(apperror.ErrCompletionFailed, 0, err)
	}
	result.Raw = raw
	return &result, nil
}

// fail aborts the server session when one exists and returns err unchanged.
func (s *session) fail(ctx context.Context, err error) error {
	if s.uploadID != "" {
		s.transition(StateAborting, 0)
		s.abort(ctx)
	}
	s.transition(StateFailed, 0)
	s.logger.Error("upload failed",
		slog.String("upload_id", s.uploadID),
		slog.String("error", err.Error()),
	)
	return err
}

// abort is best effort: its own failure is logged, never returned. It runs on
// a context detached from the caller's cancellation so a cancelled upload is
// still cleaned up.
func (s *session) abort(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()

	path := fmt.Sprintf("/api/files/multipart/%s", url.PathEscape(s.uploadID))
	do := s.uploader.client.Do
	if d, ok := s.uploader.client.(DirectDoer); ok {
		do = d.DoDirect
	}
	resp, err := do(ctx, http.MethodDelete, path, nil, "")
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err = apperror.FromResponse(resp)
		} else {
			_, _ = io.Copy(io.Discard, resp.Body)
		}
	}
	if err != nil {
		s.logger.Warn("failed to abort upload",
			slog.String("upload_id", s.uploadID),
			slog.String("error", fmt.Errorf("%w: %w", apperror.ErrAbortFailed, err).Error()),
		)
		return
	}
	s.logger.Info("upload aborted", slog.String("upload_id", s.uploadID))
}

// send performs one request and decodes a 2xx JSON body into out, returning
// the raw body.
func (s *session) send(ctx context.Context, method, path string, body io.Reader, contentType string, out any) ([]byte, error) {
	resp, err := s.uploader.client.Do(ctx, method, path, body, contentType)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperror.FromResponse(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return raw, nil
}

func (s *session) wrap(kind error, part int, err error) *UploadError {
	return &UploadError{
		Kind:       kind,
		UploadID:   s.uploadID,
		PartNumber: part,
		Err:        err,
	}
}
