package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/truongminh/classboard/internal/media"
)

// UploadHandler turns multipart uploads into Cloudinary URLs used as
// image references in posts and the banner setting.
type UploadHandler struct {
	service *media.CloudinaryService
}

func NewUploadHandler(service *media.CloudinaryService) *UploadHandler {
	return &UploadHandler{service: service}
}

type UploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		http.Error(w, "uploads are not configured", http.StatusServiceUnavailable)
		return
	}

	// Max 10MB per image
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file provided: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	folder := r.URL.Query().Get("folder")
	if folder == "" {
		folder = "classboard"
	}

	url, err := h.service.UploadFileFromHeader(r.Context(), fileHeader, folder)
	if err != nil {
		http.Error(w, "Failed to upload file: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(UploadResponse{
		Success: true,
		Message: "File uploaded successfully",
		URL:     url,
	})
}
