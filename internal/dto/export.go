package dto

import "time"

// ExportResponse describes a rendered export and its signed download URL.
type ExportResponse struct {
	ExportID    string    `json:"export_id"`
	Format      string    `json:"format"`
	Filename    string    `json:"filename"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}
