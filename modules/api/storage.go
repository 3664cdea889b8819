package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"nanobanana-studio/modules/assets"
	"nanobanana-studio/modules/client"
)

// ClientRequest carries a client name for the client endpoints.
type ClientRequest struct {
	ClientName *string `json:"client_name"`
}

// SignatureRequest - 업로드 위젯 서명 요청
type SignatureRequest struct {
	Folder       string         `json:"folder"`
	ParamsToSign map[string]any `json:"params_to_sign,omitempty"`
}

// DeleteRequest names the asset to delete.
type DeleteRequest struct {
	PublicID string `json:"public_id"`
}

// clientName decodes {client_name}, trims it and validates format and length.
func clientName(r *http.Request) (string, error) {
	var req ClientRequest
	if err := decodeJSON(r, &req); err != nil {
		return "", err
	}
	if req.ClientName == nil {
		return "", missingField("client_name")
	}
	name := strings.TrimSpace(*req.ClientName)
	if err := client.Validate(name); err != nil {
		return "", err
	}
	return name, nil
}

// CheckClient reports whether the client namespace exists.
func (h *Handler) CheckClient(w http.ResponseWriter, r *http.Request) {
	name, err := clientName(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status, err := h.storage.CheckClientExists(r.Context(), name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	body := map[string]any{"exists": status.Exists, "folder_path": status.FolderPath}
	if status.Exists {
		body["subfolders"] = status.Subfolders
	}
	writeOK(w, body)
}

// CreateClientFolders validates the name and declares the three folders.
// Nothing is created remotely until the first upload.
func (h *Handler) CreateClientFolders(w http.ResponseWriter, r *http.Request) {
	name, err := clientName(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !h.storage.Ready() {
		h.writeError(w, r, assets.ErrNotConfigured)
		return
	}

	h.log.Info().Str("client", name).Msg("📁 Preparing folders")
	setup, err := h.storage.CreateClientFolders(name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{
		"folders_created": setup.FoldersCreated,
		"folder_path":     setup.FolderPath,
		"message":         setup.Message,
	})
}

// GetUploadConfig returns the upload widget settings for the client's input folder.
func (h *Handler) GetUploadConfig(w http.ResponseWriter, r *http.Request) {
	name, err := clientName(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cfg, err := h.storage.GetUploadConfig(name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{
		"cloud_name":    cfg.CloudName,
		"api_key":       cfg.APIKey,
		"folder":        cfg.Folder,
		"upload_preset": cfg.UploadPreset,
	})
}

// GetClientImages lists the URLs in a client's input folder.
func (h *Handler) GetClientImages(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("client"))
	if name == "" {
		h.writeError(w, r, &client.ValidationError{Field: "client", Message: "Missing required parameter: client"})
		return
	}

	list, err := h.storage.List(r.Context(), assets.FolderInput, name, 100)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	urls := make([]string, 0, len(list.Images))
	for _, img := range list.Images {
		urls = append(urls, img.SecureURL)
	}
	writeOK(w, map[string]any{"client": name, "images": urls, "total_count": len(urls)})
}

// GenerateSignature signs upload widget parameters. The body is the bare
// {signature, timestamp, api_key} the widget expects.
func (h *Handler) GenerateSignature(w http.ResponseWriter, r *http.Request) {
	var req SignatureRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	sig, err := h.storage.SignUpload(req.Folder, req.ParamsToSign)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

// GetAllFolders lists root-level client folders.
func (h *Handler) GetAllFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.storage.ListClientFolders(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"folders": folders})
}

// ListImages is the paginated, date-filtered listing.
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	folderType, err := assets.ParseFolderType(defaultIfEmpty(q.Get("folder_type"), string(assets.FolderAll)), true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	maxResults := 0
	if raw := q.Get("max_results"); raw != "" {
		maxResults, err = strconv.Atoi(raw)
		if err != nil || maxResults <= 0 {
			h.writeError(w, r, &client.ValidationError{Field: "max_results", Message: "max_results must be a positive integer"})
			return
		}
	}

	page, err := h.storage.ListPaginated(r.Context(), assets.ListQuery{
		ClientID:   q.Get("client"),
		FolderType: folderType,
		MaxResults: maxResults,
		Cursor:     q.Get("next_cursor"),
		StartDate:  q.Get("start_date"),
		EndDate:    q.Get("end_date"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{
		"images":      page.Images,
		"total_count": page.TotalCount,
		"next_cursor": page.NextCursor,
		"has_more":    page.HasMore,
	})
}

// ImageInfo returns metadata for ?public_id=.
func (h *Handler) ImageInfo(w http.ResponseWriter, r *http.Request) {
	publicID := strings.TrimSpace(r.URL.Query().Get("public_id"))
	if publicID == "" {
		h.writeError(w, r, &client.ValidationError{Field: "public_id", Message: "Missing required parameter: public_id"})
		return
	}
	info, err := h.storage.GetImageInfo(r.Context(), publicID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	created := ""
	if !info.CreatedAt.IsZero() {
		created = info.CreatedAt.UTC().Format(time.RFC3339)
	}
	writeOK(w, map[string]any{
		"width":      info.Width,
		"height":     info.Height,
		"format":     info.Format,
		"bytes":      info.Bytes,
		"created_at": created,
		"url":        info.SecureURL,
	})
}

// DeleteImage passes a delete through to the provider.
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.PublicID = strings.TrimSpace(req.PublicID)
	if req.PublicID == "" {
		h.writeError(w, r, missingField("public_id"))
		return
	}

	res, err := h.storage.Delete(r.Context(), req.PublicID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func defaultIfEmpty(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
