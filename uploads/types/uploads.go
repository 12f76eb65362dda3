package types

import (
	"encoding/json"

	filetypes "github.com/Yulian302/lfusys-client/files/types"
)

type InitiateRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type"`
	TotalSize   int64  `json:"total_size"`
}

// InitiateResponse describes the session the server opened. ChunkSize and
// TotalParts are decided by the server.
type InitiateResponse struct {
	UploadID   string `json:"upload_id"`
	ChunkSize  int64  `json:"chunk_size"`
	TotalParts int    `json:"total_parts"`
}

type PartResponse struct {
	ETag       string `json:"etag"`
	PartNumber int    `json:"part_number"`
}

// PartReceipt acknowledges one stored part.
type PartReceipt struct {
	PartNumber int    `json:"part_number"`
	ETag       string `json:"etag"`
}

type CompleteRequest struct {
	Parts []PartReceipt `json:"parts" binding:"required"`
}

// UploadResult is the completion response body. Raw holds the body exactly
// as the server sent it.
type UploadResult struct {
	File filetypes.File  `json:"file"`
	Raw  json.RawMessage `json:"-"`
}

type AbortResponse struct {
	Success bool `json:"success"`
}
