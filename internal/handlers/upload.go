package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const maxUploadSize = 10 * 1024 * 1024

// HandleUpload adds operator-provided images to a product's selection.
// Accepts either a JSON body with an already-encoded data URI, or a
// multipart form whose files are encoded server-side.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		var request struct {
			EAN  string `json:"ean"`
			Data string `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if !strings.HasPrefix(request.Data, "data:") {
			h.writeError(w, "data must be a data URI", http.StatusBadRequest)
			return
		}
		if err := session.AddUpload(request.EAN, request.Data); err != nil {
			h.writeError(w, err.Error(), http.StatusConflict)
			return
		}
		h.writeJSON(w, map[string]any{"message": "Successfully added 1 image", "images": 1})
		return
	}

	h.handleFileUpload(w, r, session)
}

func (h *Handler) handleFileUpload(w http.ResponseWriter, r *http.Request, session sessionUploader) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.writeError(w, "Failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}
	ean := r.FormValue("ean")

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		h.writeError(w, "No files in request", http.StatusBadRequest)
		return
	}

	added := 0
	for _, header := range files {
		dataURI, err := fileToDataURI(header)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := session.AddUpload(ean, dataURI); err != nil {
			h.writeError(w, err.Error(), http.StatusConflict)
			return
		}
		added++
	}

	h.writeJSON(w, map[string]any{
		"message": fmt.Sprintf("Successfully added %d image(s)", added),
		"images":  added,
	})
}

// sessionUploader is the single workflow operation file uploads need.
type sessionUploader interface {
	AddUpload(ean, data string) error
}

func fileToDataURI(header *multipart.FileHeader) (string, error) {
	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload %s: %w", header.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		return "", fmt.Errorf("failed to read upload %s: %w", header.Filename, err)
	}
	if len(data) >= maxUploadSize {
		return "", fmt.Errorf("upload %s too large (max 10MB)", header.Filename)
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("upload %s is not an image (%s)", header.Filename, mimeType)
	}

	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
