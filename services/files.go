package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/Yulian302/lfusys-client/auth"
	"github.com/Yulian302/lfusys-client/files/types"
	"github.com/Yulian302/lfusys-client/logging"
	"github.com/Yulian302/lfusys-client/uploads"
)

type FileService interface {
	List(ctx context.Context) ([]types.File, error)
	Get(ctx context.Context, id string) (*types.File, error)
	Download(ctx context.Context, id string, w io.Writer) (int64, error)
	Delete(ctx context.Context, id string) error
	Upload(ctx context.Context, src uploads.Source, onProgress uploads.ProgressFunc) (*types.File, error)
}

type FileServiceImpl struct {
	client      APIClient
	uploader    *uploads.Uploader
	directLimit int64
	logger      *slog.Logger
}

// NewFileServiceImpl uploads files up to directLimit bytes in one request
// and larger ones through uploader.
func NewFileServiceImpl(client APIClient, uploader *uploads.Uploader, directLimit int64, logger *slog.Logger) *FileServiceImpl {
	return &FileServiceImpl{
		client:      client,
		uploader:    uploader,
		directLimit: directLimit,
		logger:      logger,
	}
}

func filePath(id string, suffix string) string {
	return "/api/files/" + url.PathEscape(id) + suffix
}

func (svc *FileServiceImpl) List(ctx context.Context) ([]types.File, error) {
	var resp types.FilesResponse
	if err := svc.client.DoJSON(ctx, http.MethodGet, "/api/files", nil, &resp); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return resp.Files, nil
}

func (svc *FileServiceImpl) Get(ctx context.Context, id string) (*types.File, error) {
	var resp types.FileResponse
	if err := svc.client.DoJSON(ctx, http.MethodGet, filePath(id, ""), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.File, nil
}

// Download streams the file body into w.
func (svc *FileServiceImpl) Download(ctx context.Context, id string, w io.Writer) (int64, error) {
	resp, err := svc.client.Do(ctx, http.MethodGet, filePath(id, "/download"), nil, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := auth.CheckResponse(resp); err != nil {
		return 0, err
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download %s: %w", id, err)
	}
	return n, nil
}

func (svc *FileServiceImpl) Delete(ctx context.Context, id string) error {
	var resp types.DeleteFileResponse
	return svc.client.DoJSON(ctx, http.MethodDelete, filePath(id, ""), nil, &resp)
}

func (svc *FileServiceImpl) Upload(ctx context.Context, src uploads.Source, onProgress uploads.ProgressFunc) (*types.File, error) {
	logger := logging.FromContext(ctx, svc.logger)

	if src.Size() > svc.directLimit {
		logger.Debug("uploading in chunks", slog.String("file", src.Name()), slog.Int64("size", src.Size()))
		result, err := svc.uploader.UploadInChunks(ctx, src, onProgress)
		if err != nil {
			return nil, err
		}
		return &result.File, nil
	}

	logger.Debug("uploading directly", slog.String("file", src.Name()), slog.Int64("size", src.Size()))
	file, err := svc.uploadDirect(ctx, src)
	if err != nil {
		return nil, err
	}
	if onProgress != nil {
		onProgress(100)
	}
	return file, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (svc *FileServiceImpl) uploadDirect(ctx context.Context, src uploads.Source) (*types.File, error) {
	contentType := src.ContentType()
	if contentType == "" {
		contentType = uploads.DefaultContentType
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(src.Name())))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, io.NewSectionReader(src, 0, src.Size())); err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Name(), err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := svc.client.Do(ctx, http.MethodPost, "/api/files", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := auth.CheckResponse(resp); err != nil {
		return nil, err
	}
	var out types.FileResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out.File, nil
}
