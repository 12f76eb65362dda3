package devserver

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Yulian302/lfusys-client/auth"
	apperror "github.com/Yulian302/lfusys-client/errors"
	filetypes "github.com/Yulian302/lfusys-client/files/types"
	"github.com/Yulian302/lfusys-client/logging"
	"github.com/Yulian302/lfusys-client/store"
	"github.com/Yulian302/lfusys-client/uploads"
	"github.com/Yulian302/lfusys-client/uploads/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxOpenSessions = 64

// MultipartHandler implements the three-phase upload protocol. Sessions and
// parts live in the uploads store until completion or abort.
type MultipartHandler struct {
	uploads   store.UploadsStore
	files     store.FileStore
	chunkSize int64
	logger    *slog.Logger
}

func NewMultipartHandler(uploads store.UploadsStore, files store.FileStore, chunkSize int64, logger *slog.Logger) *MultipartHandler {
	return &MultipartHandler{
		uploads:   uploads,
		files:     files,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// TotalParts is ceil(size/chunkSize), at least one so empty files still
// complete through a single empty part.
func TotalParts(size, chunkSize int64) int {
	n := (size + chunkSize - 1) / chunkSize
	if n < 1 {
		n = 1
	}
	return int(n)
}

// ETag is the quoted hex MD5 of a part.
func ETag(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func (h *MultipartHandler) Initiate(c *gin.Context) {
	var req types.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.BadRequestResponse(c, "invalid request body")
		return
	}
	if req.TotalSize < 0 {
		apperror.BadRequestResponse(c, "total_size cannot be negative")
		return
	}
	if req.TotalSize > uploads.MaxFileSize {
		apperror.ErrorResponse(c, http.StatusRequestEntityTooLarge, apperror.ErrFileTooLarge.Error())
		return
	}
	if req.ContentType == "" {
		req.ContentType = uploads.DefaultContentType
	}

	owner := c.GetString(auth.ContextUserID)
	open, err := h.uploads.CountActive(c, owner)
	if err != nil {
		apperror.InternalServerErrorResponse(c, "could not create upload session")
		return
	}
	if open >= maxOpenSessions {
		apperror.TooManyRequestsResponse(c, "too many open upload sessions")
		return
	}

	sess := store.UploadSession{
		ID:          uuid.NewString(),
		OwnerID:     owner,
		Filename:    filepath.Base(req.Filename),
		ContentType: req.ContentType,
		TotalSize:   req.TotalSize,
		ChunkSize:   h.chunkSize,
		TotalParts:  TotalParts(req.TotalSize, h.chunkSize),
		CreatedAt:   time.Now(),
	}
	if err := h.uploads.Create(c, sess); err != nil {
		apperror.InternalServerErrorResponse(c, "could not create upload session")
		return
	}

	logging.FromContext(c.Request.Context(), h.logger).Info("multipart upload initiated",
		slog.String("upload_id", sess.ID),
		slog.Int64("total_size", sess.TotalSize),
		slog.Int("total_parts", sess.TotalParts),
	)

	c.JSON(http.StatusOK, types.InitiateResponse{
		UploadID:   sess.ID,
		ChunkSize:  sess.ChunkSize,
		TotalParts: sess.TotalParts,
	})
}

func (h *MultipartHandler) UploadPart(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}

	n, err := strconv.Atoi(c.Param("part"))
	if err != nil || n < 1 || n > sess.TotalParts {
		apperror.BadRequestResponse(c, fmt.Sprintf("part number must be between 1 and %d", sess.TotalParts))
		return
	}

	fh, err := c.FormFile("chunk")
	if err != nil {
		apperror.BadRequestResponse(c, "chunk is required")
		return
	}
	src, err := fh.Open()
	if err != nil {
		apperror.InternalServerErrorResponse(c, "failed to open chunk")
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		apperror.InternalServerErrorResponse(c, "failed to read chunk")
		return
	}

	start, end := uploads.PartRange(n, sess.ChunkSize, sess.TotalSize)
	if int64(len(data)) != end-start {
		apperror.BadRequestResponse(c, fmt.Sprintf("part %d has %d bytes, expected %d", n, len(data), end-start))
		return
	}

	etag := ETag(data)
	if err := h.uploads.PutPart(c, sess.ID, n, store.StoredPart{ETag: etag, Data: data}); err != nil {
		if errors.Is(err, apperror.ErrSessionNotFound) {
			apperror.NotFoundResponse(c, "upload session not found")
			return
		}
		apperror.InternalServerErrorResponse(c, "could not store part")
		return
	}

	c.JSON(http.StatusOK, types.PartResponse{ETag: etag, PartNumber: n})
}

func (h *MultipartHandler) Complete(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}

	var req types.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.BadRequestResponse(c, "invalid request body")
		return
	}
	if len(req.Parts) != sess.TotalParts {
		apperror.BadRequestResponse(c, fmt.Sprintf("expected %d parts, got %d", sess.TotalParts, len(req.Parts)))
		return
	}

	data := make([]byte, 0, sess.TotalSize)
	for i, receipt := range req.Parts {
		if receipt.PartNumber != i+1 {
			apperror.BadRequestResponse(c, "parts must be listed in ascending order")
			return
		}
		part, found := sess.Parts[receipt.PartNumber]
		if !found {
			apperror.BadRequestResponse(c, fmt.Sprintf("part %d was not uploaded", receipt.PartNumber))
			return
		}
		if part.ETag != receipt.ETag {
			apperror.BadRequestResponse(c, fmt.Sprintf("part %d etag mismatch", receipt.PartNumber))
			return
		}
		data = append(data, part.Data...)
	}

	file := store.StoredFile{
		File: filetypes.File{
			ID:          uuid.NewString(),
			Filename:    sess.Filename,
			Size:        int64(len(data)),
			ContentType: sess.ContentType,
			CreatedAt:   time.Now().Unix(),
		},
		OwnerID: sess.OwnerID,
		Data:    data,
	}
	if err := h.files.Put(c, file); err != nil {
		apperror.InternalServerErrorResponse(c, "could not store file")
		return
	}
	if err := h.uploads.Delete(c, sess.ID); err != nil && !errors.Is(err, apperror.ErrSessionNotFound) {
		logging.FromContext(c.Request.Context(), h.logger).Warn("could not drop completed session",
			slog.String("upload_id", sess.ID),
			slog.String("error", err.Error()),
		)
	}

	c.JSON(http.StatusOK, types.UploadResult{File: file.File})
}

func (h *MultipartHandler) Abort(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}
	if err := h.uploads.Delete(c, sess.ID); err != nil {
		if errors.Is(err, apperror.ErrSessionNotFound) {
			apperror.NotFoundResponse(c, "upload session not found")
			return
		}
		apperror.InternalServerErrorResponse(c, "could not abort upload")
		return
	}

	logging.FromContext(c.Request.Context(), h.logger).Info("multipart upload aborted", slog.String("upload_id", sess.ID))
	c.JSON(http.StatusOK, types.AbortResponse{Success: true})
}

func (h *MultipartHandler) ownedSession(c *gin.Context) (*store.UploadSession, bool) {
	sess, err := h.uploads.Get(c, c.Param("upload_id"))
	if err != nil || sess.OwnerID != c.GetString(auth.ContextUserID) {
		apperror.NotFoundResponse(c, "upload session not found")
		return nil, false
	}
	return sess, true
}
