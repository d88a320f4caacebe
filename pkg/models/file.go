package models

// UploadResponse is returned by a storage node after a successful upload.
type UploadResponse struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}
