package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"nanobanana-studio/modules/assets"
	"nanobanana-studio/modules/gallery"
	"nanobanana-studio/modules/onboarding"
	"nanobanana-studio/modules/session"
)

func sessionID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

// GetSession returns the whole session context.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"session": sess})
}

// DeleteSession discards a session.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if _, err := h.sessions.Get(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.sessions.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"session_id": id})
}

// WebSocket subscribes to live updates of ?session=<id>.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "live updates disabled"})
		return
	}
	sess, err := h.sessions.Get(r.Context(), r.URL.Query().Get("session"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.hub.ServeWS(w, r, sess.ID, sess)
}

// onboarding

func onboardingBody(sess *session.Session) map[string]any {
	return map[string]any{
		"session_id": sess.ID,
		"step":       sess.Onboarding.Step,
		"step_name":  onboarding.StepName(sess.Onboarding.Step),
		"onboarding": sess.Onboarding,
	}
}

func (h *Handler) OnboardingStart(w http.ResponseWriter, r *http.Request) {
	sess, err := h.onboarding.Start(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, onboardingBody(sess))
}

func (h *Handler) OnboardingClient(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ClientName == nil {
		h.writeError(w, r, missingField("client_name"))
		return
	}
	sess, err := h.onboarding.SubmitClient(r.Context(), sessionID(r), *req.ClientName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	body := onboardingBody(sess)
	body["client_name"] = sess.Onboarding.Client.ClientID
	body["client_exists"] = sess.Onboarding.Client.Exists
	writeOK(w, body)
}

func (h *Handler) OnboardingFolders(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if err := decodeOptionalJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, setup, err := h.onboarding.SetupFolders(r.Context(), sessionID(r), req.Action)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	body := onboardingBody(sess)
	if setup != nil {
		body["folders_created"] = setup.FoldersCreated
		body["message"] = setup.Message
	}
	writeOK(w, body)
}

func (h *Handler) OnboardingUpload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UploadedCount *int `json:"uploaded_count"`
	}
	if err := decodeOptionalJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, err := h.onboarding.PrepareUpload(r.Context(), sessionID(r), req.UploadedCount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	body := onboardingBody(sess)
	body["upload_url"] = sess.Onboarding.UploadURL
	writeOK(w, body)
}

func (h *Handler) OnboardingLabel(w http.ResponseWriter, r *http.Request) {
	sess, err := h.onboarding.StartLabeling(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	body := onboardingBody(sess)
	body["label_url"] = sess.Onboarding.LabelURL
	writeOK(w, body)
}

func (h *Handler) OnboardingComplete(w http.ResponseWriter, r *http.Request) {
	sess, err := h.onboarding.Complete(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	body := onboardingBody(sess)
	body["summary"] = map[string]any{
		"client":         sess.Onboarding.Client.ClientID,
		"existing":       sess.Onboarding.Client.Exists,
		"uploaded_count": sess.Onboarding.UploadedCount,
		"folders":        assets.ClientFolders,
	}
	writeOK(w, body)
}

func (h *Handler) OnboardingBack(w http.ResponseWriter, r *http.Request) {
	sess, err := h.onboarding.Back(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, onboardingBody(sess))
}

func (h *Handler) OnboardingReset(w http.ResponseWriter, r *http.Request) {
	sess, err := h.onboarding.Reset(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, onboardingBody(sess))
}

// gallery

func galleryBody(sess *session.Session) map[string]any {
	return map[string]any{"session_id": sess.ID, "gallery": sess.Gallery}
}

func (h *Handler) GalleryStart(w http.ResponseWriter, r *http.Request) {
	sess, err := h.gallery.Start(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, galleryBody(sess))
}

func (h *Handler) GalleryFilters(w http.ResponseWriter, r *http.Request) {
	var f gallery.Filters
	if err := decodeJSON(r, &f); err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, err := h.gallery.ApplyFilters(r.Context(), sessionID(r), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, galleryBody(sess))
}

func (h *Handler) GalleryNext(w http.ResponseWriter, r *http.Request) {
	sess, err := h.gallery.Next(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, galleryBody(sess))
}

func (h *Handler) GalleryPrevious(w http.ResponseWriter, r *http.Request) {
	sess, err := h.gallery.Previous(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, galleryBody(sess))
}

func (h *Handler) GalleryReload(w http.ResponseWriter, r *http.Request) {
	sess, err := h.gallery.Reload(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, galleryBody(sess))
}

// GalleryExport downloads the current page as CSV.
func (h *Handler) GalleryExport(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := h.gallery.ExportCSV(r.Context(), sess.ID, &buf); err != nil {
		h.writeError(w, r, err)
		return
	}

	name := "gallery"
	if sess.Gallery.Client != "" {
		name = sess.Gallery.Client
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_page%d.csv"`, name, sess.Gallery.PageNumber))
	_, _ = w.Write(buf.Bytes())
}
