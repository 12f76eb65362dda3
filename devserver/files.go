package devserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/Yulian302/lfusys-client/auth"
	apperror "github.com/Yulian302/lfusys-client/errors"
	"github.com/Yulian302/lfusys-client/files/types"
	"github.com/Yulian302/lfusys-client/store"
	"github.com/Yulian302/lfusys-client/uploads"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type FileHandler struct {
	files store.FileStore
}

func NewFileHandler(files store.FileStore) *FileHandler {
	return &FileHandler{
		files: files,
	}
}

func (h *FileHandler) ListFiles(c *gin.Context) {
	files, err := h.files.ListByOwner(c, c.GetString(auth.ContextUserID))
	if err != nil {
		apperror.InternalServerErrorResponse(c, "could not get files")
		return
	}
	c.JSON(http.StatusOK, types.FilesResponse{Files: files})
}

func (h *FileHandler) GetFile(c *gin.Context) {
	f, ok := h.ownedFile(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, types.FileResponse{File: f.File})
}

func (h *FileHandler) DownloadFile(c *gin.Context) {
	f, ok := h.ownedFile(c)
	if !ok {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Filename))
	c.Data(http.StatusOK, f.ContentType, f.Data)
}

func (h *FileHandler) DeleteFile(c *gin.Context) {
	f, ok := h.ownedFile(c)
	if !ok {
		return
	}
	if err := h.files.Delete(c, f.ID); err != nil {
		if errors.Is(err, apperror.ErrFileNotFound) {
			apperror.NotFoundResponse(c, "file not found")
			return
		}
		apperror.InternalServerErrorResponse(c, "could not delete file")
		return
	}
	c.JSON(http.StatusOK, types.DeleteFileResponse{Success: true})
}

// UploadFile stores a single-request upload sent as form field "file".
func (h *FileHandler) UploadFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		apperror.BadRequestResponse(c, "file is required")
		return
	}
	if fh.Size > uploads.MaxFileSize {
		apperror.ErrorResponse(c, http.StatusRequestEntityTooLarge, apperror.ErrFileTooLarge.Error())
		return
	}

	src, err := fh.Open()
	if err != nil {
		apperror.InternalServerErrorResponse(c, "failed to open file")
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		apperror.InternalServerErrorResponse(c, "failed to read file")
		return
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == uploads.DefaultContentType {
		contentType = mimetype.Detect(data).String()
	}

	file := store.StoredFile{
		File: types.File{
			ID:          uuid.NewString(),
			Filename:    filepath.Base(fh.Filename),
			Size:        int64(len(data)),
			ContentType: contentType,
			CreatedAt:   time.Now().Unix(),
		},
		OwnerID: c.GetString(auth.ContextUserID),
		Data:    data,
	}
	if err := h.files.Put(c, file); err != nil {
		apperror.InternalServerErrorResponse(c, "could not store file")
		return
	}

	c.JSON(http.StatusOK, types.FileResponse{File: file.File})
}

// ownedFile writes a 404 for files that are missing or belong to someone else.
func (h *FileHandler) ownedFile(c *gin.Context) (*store.StoredFile, bool) {
	id := c.Param("id")
	if id == "" {
		apperror.BadRequestResponse(c, "file id is required")
		return nil, false
	}
	f, err := h.files.Get(c, id)
	if err != nil || f.OwnerID != c.GetString(auth.ContextUserID) {
		apperror.NotFoundResponse(c, "file not found")
		return nil, false
	}
	return f, true
}
