package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"nanobanana-studio/modules/assets"
	"nanobanana-studio/modules/client"
	"nanobanana-studio/modules/common/logger"
	"nanobanana-studio/modules/common/utils"
	"nanobanana-studio/modules/generation"
	"nanobanana-studio/modules/session"
)

// GenerateRequest - /generate 요청
type GenerateRequest struct {
	Prompt         string `json:"prompt"`
	ClientFolder   string `json:"client_folder,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	SaveToDisk     bool   `json:"save_to_disk,omitempty"` // also write into OUTPUT_DIR
	OutputFilename string `json:"output_filename,omitempty"`
}

// EditRequest is shared by /edit and /restore. Restore treats the prompt as optional.
type EditRequest struct {
	ImageURL       string `json:"image_url"`
	Prompt         string `json:"prompt"`
	ClientFolder   string `json:"client_folder,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	SaveToDisk     bool   `json:"save_to_disk,omitempty"`
	OutputFilename string `json:"output_filename,omitempty"`
}

// Generate creates an image from a prompt and stores it under generated/.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		h.writeError(w, r, missingField("prompt"))
		return
	}
	clientFolder, err := h.resolveClient(req.ClientFolder)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.checkSession(r.Context(), req.SessionID); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.log.Info().Str("prompt", logger.Truncate(req.Prompt, 50)).Str("client", clientFolder).Msg("🎨 Generating image")
	img, err := h.gen.Generate(r.Context(), req.Prompt, generation.Options{SaveToDisk: req.SaveToDisk, OutputFilename: req.OutputFilename})
	if err != nil {
		h.stats.failed.Add(1)
		h.writeError(w, r, err)
		return
	}

	body := map[string]any{"prompt": req.Prompt}
	entry := session.StudioEntry{Kind: "generate", Prompt: req.Prompt, Client: clientFolder}
	if err := h.deliver(r.Context(), img, assets.FolderGenerated, clientFolder, "generated", body, &entry); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.stats.success("generate")
	h.record(r.Context(), req.SessionID, entry)
	writeOK(w, body)
}

// Edit applies a text instruction to the image at image_url and stores the
// result under edited/.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	h.transform(w, r, "edit")
}

// Restore is Edit with the restoration prompt as default.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	h.transform(w, r, "restore")
}

func (h *Handler) transform(w http.ResponseWriter, r *http.Request, op string) {
	var req EditRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.ImageURL == "" || (op == "edit" && req.Prompt == "") {
		fields := "image_url and prompt"
		if op == "restore" {
			fields = "image_url"
		}
		h.writeError(w, r, &client.ValidationError{Field: "body", Message: "Missing required fields: " + fields})
		return
	}
	clientFolder, err := h.resolveClient(req.ClientFolder)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.checkSession(r.Context(), req.SessionID); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.log.Info().
		Str("op", op).
		Str("image_url", logger.Truncate(req.ImageURL, 50)).
		Str("prompt", logger.Truncate(req.Prompt, 50)).
		Str("client", clientFolder).
		Bool("cloudinary_source", assets.IsCloudinaryURL(req.ImageURL)).
		Msg("✏️  Transforming image")

	src := generation.Source{URL: req.ImageURL}
	opts := generation.Options{SaveToDisk: req.SaveToDisk, OutputFilename: req.OutputFilename}
	var img *generation.Image
	if op == "restore" {
		img, err = h.gen.Restore(r.Context(), src, req.Prompt, opts)
	} else {
		img, err = h.gen.Edit(r.Context(), src, req.Prompt, opts)
	}
	if err != nil {
		h.stats.failed.Add(1)
		h.writeError(w, r, err)
		return
	}

	prompt := req.Prompt
	if op == "restore" && prompt == "" {
		prompt = generation.DefaultRestorePrompt
	}
	body := map[string]any{"prompt": prompt, "original_url": req.ImageURL}
	entry := session.StudioEntry{Kind: op, Prompt: prompt, Client: clientFolder, SourceURL: req.ImageURL}
	stem := "edited"
	if op == "restore" {
		stem = "restored"
	}
	if err := h.deliver(r.Context(), img, assets.FolderEdited, clientFolder, stem, body, &entry); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.stats.success(op)
	h.record(r.Context(), req.SessionID, entry)
	writeOK(w, body)
}

// deliver uploads the image when storage is configured, else inlines it as
// base64. body and entry are filled in place.
func (h *Handler) deliver(ctx context.Context, img *generation.Image, folder assets.FolderType, clientFolder, stem string, body map[string]any, entry *session.StudioEntry) error {
	entry.CreatedAt = h.now().UTC()
	if img.Path != "" {
		body["local_path"] = img.Path
	}
	if !h.storage.Ready() {
		data, format := img.Data, strings.TrimPrefix(img.MIMEType, "image/")
		if converted, err := utils.ToPNG(img.Data); err == nil {
			data, format = converted, "png"
		}
		body["image_base64"] = utils.ConvertImageToBase64(data)
		body["format"] = format
		return nil
	}

	res, err := h.storage.Upload(ctx, img.Data, folder, clientFolder, fmt.Sprintf("%s_%d", stem, h.now().Unix()))
	if err != nil {
		return fmt.Errorf("Failed to upload to Cloudinary: %w", err)
	}
	body["image_url"] = res.URL
	body["public_id"] = res.PublicID
	body["client_folder"] = clientFolder
	entry.URL = res.URL
	entry.PublicID = res.PublicID
	return nil
}

// resolveClient picks the request's client_folder, then the configured
// default. It is only mandatory when uploads will happen.
func (h *Handler) resolveClient(requested string) (string, error) {
	clientFolder := strings.TrimSpace(requested)
	if clientFolder == "" {
		clientFolder = h.opts.DefaultClient
	}
	if clientFolder == "" {
		if h.storage.Ready() {
			return "", &client.ValidationError{
				Field:   "client_folder",
				Message: "Missing required field: client_folder (required when using Cloudinary)",
			}
		}
		return "", nil
	}
	if err := client.Validate(clientFolder); err != nil {
		return "", err
	}
	return clientFolder, nil
}

func (h *Handler) checkSession(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	_, err := h.sessions.Get(ctx, id)
	return err
}

// record adds the result to the session's studio history. Failures are
// logged only; the image was already delivered.
func (h *Handler) record(ctx context.Context, id string, entry session.StudioEntry) {
	if id == "" {
		return
	}
	_, err := h.sessions.Update(ctx, id, func(s *session.Session) error {
		s.AddStudioEntry(entry, h.gen.EstimateCost(1))
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("session", id).Msg("⚠️  Failed to record studio history")
	}
}
