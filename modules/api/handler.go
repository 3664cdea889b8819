package api

import (
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"nanobanana-studio/modules/assets"
	"nanobanana-studio/modules/common/logger"
	"nanobanana-studio/modules/gallery"
	"nanobanana-studio/modules/generation"
	"nanobanana-studio/modules/onboarding"
	"nanobanana-studio/modules/session"
)

// Options are the static settings the façade reads.
type Options struct {
	BaseURL       string
	TemplatesDir  string
	StudioURL     string
	OnboardingURL string
	// DefaultClient is used when a request carries no client_folder.
	DefaultClient string
	// Sweeper, when set, backs /admin/cleanup.
	Sweeper Sweeper
}

// Sweeper drops expired sessions and reports how many were removed.
type Sweeper interface {
	CleanupExpired() int
}

// Handler is the HTTP façade. It holds no per-request state; everything
// stateful goes through the session manager.
type Handler struct {
	gen        *generation.Service
	storage    *assets.Service
	sessions   *session.Manager
	hub        *session.Hub
	onboarding *onboarding.Service
	gallery    *gallery.Service
	opts       Options
	log        zerolog.Logger
	router     *mux.Router
	now        func() time.Time
	started    time.Time
	stats      studioStats
}

// NewHandler - hub은 nil 허용 (웹소켓 비활성)
func NewHandler(gen *generation.Service, storage *assets.Service, sessions *session.Manager, hub *session.Hub, opts Options, log *zerolog.Logger) *Handler {
	l := logger.Discard()
	if log != nil {
		l = *log
	}
	return &Handler{
		gen:        gen,
		storage:    storage,
		sessions:   sessions,
		hub:        hub,
		onboarding: onboarding.NewService(sessions, storage, opts.BaseURL, &l),
		gallery:    gallery.NewService(sessions, storage, &l),
		opts:       opts,
		log:        l.With().Str("module", "api").Logger(),
		now:        time.Now,
		started:    time.Now(),
	}
}

// RegisterRoutes wires every endpoint onto r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	h.router = r

	// pages & meta
	r.HandleFunc("/", h.Dashboard).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/api/docs", h.Docs).Methods("GET")
	r.HandleFunc("/api/pricing", h.Pricing).Methods("GET")
	r.HandleFunc("/metrics", h.Metrics).Methods("GET")
	r.HandleFunc("/admin/cleanup", h.ForceCleanup).Methods("POST")
	r.HandleFunc("/upload", h.page("upload_simple.html", "upload page")).Methods("GET")
	r.HandleFunc("/label-images", h.page("label_images.html", "label images page")).Methods("GET")

	// studio
	for _, prefix := range []string{"", "/api"} {
		r.HandleFunc(prefix+"/generate", h.Generate).Methods("POST")
		r.HandleFunc(prefix+"/edit", h.Edit).Methods("POST")
	}
	r.HandleFunc("/restore", h.Restore).Methods("POST")

	// storage
	r.HandleFunc("/api/check-client", h.CheckClient).Methods("POST")
	r.HandleFunc("/api/create-client-folders", h.CreateClientFolders).Methods("POST")
	r.HandleFunc("/api/get-upload-config", h.GetUploadConfig).Methods("POST")
	r.HandleFunc("/api/get-client-images", h.GetClientImages).Methods("GET")
	r.HandleFunc("/api/generate-signature", h.GenerateSignature).Methods("POST")
	r.HandleFunc("/api/get-all-folders", h.GetAllFolders).Methods("GET")
	r.HandleFunc("/api/list-images", h.ListImages).Methods("GET")
	r.HandleFunc("/api/image-info", h.ImageInfo).Methods("GET")
	r.HandleFunc("/api/delete-image", h.DeleteImage).Methods("POST")

	// sessions
	r.HandleFunc("/api/sessions/{id}", h.GetSession).Methods("GET")
	r.HandleFunc("/api/sessions/{id}", h.DeleteSession).Methods("DELETE")
	r.HandleFunc("/ws", h.WebSocket).Methods("GET")

	// onboarding
	r.HandleFunc("/api/onboarding", h.OnboardingStart).Methods("POST")
	r.HandleFunc("/api/onboarding/{id}/client", h.OnboardingClient).Methods("POST")
	r.HandleFunc("/api/onboarding/{id}/folders", h.OnboardingFolders).Methods("POST")
	r.HandleFunc("/api/onboarding/{id}/upload", h.OnboardingUpload).Methods("POST")
	r.HandleFunc("/api/onboarding/{id}/label", h.OnboardingLabel).Methods("POST")
	r.HandleFunc("/api/onboarding/{id}/complete", h.OnboardingComplete).Methods("POST")
	r.HandleFunc("/api/onboarding/{id}/back", h.OnboardingBack).Methods("POST")
	r.HandleFunc("/api/onboarding/{id}/reset", h.OnboardingReset).Methods("POST")

	// gallery
	r.HandleFunc("/api/gallery", h.GalleryStart).Methods("POST")
	r.HandleFunc("/api/gallery/{id}/filters", h.GalleryFilters).Methods("POST")
	r.HandleFunc("/api/gallery/{id}/next", h.GalleryNext).Methods("POST")
	r.HandleFunc("/api/gallery/{id}/previous", h.GalleryPrevious).Methods("POST")
	r.HandleFunc("/api/gallery/{id}/reload", h.GalleryReload).Methods("POST")
	r.HandleFunc("/api/gallery/{id}/export.csv", h.GalleryExport).Methods("GET")
}

// NewRouter builds a router with the façade routes registered.
func (h *Handler) NewRouter() *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}
