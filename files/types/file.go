package types

type File struct {
	ID          string `json:"id"`           // Unique file identifier
	Filename    string `json:"filename"`     // Original file name
	Size        int64  `json:"size"`         // Size in bytes
	ContentType string `json:"content_type"` // Declared MIME type
	CreatedAt   int64  `json:"created_at"`   // Unix seconds
}

type FilesResponse struct {
	Files []File `json:"files"`
}

type FileResponse struct {
	File File `json:"file"`
}

type DeleteFileResponse struct {
	Success bool `json:"success"`
}
