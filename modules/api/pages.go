package api

import (
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

const (
	serviceName    = "Nano Banana API Server"
	serviceVersion = "2.1.0"
)

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Name}}</title>
<style>
body{font-family:system-ui,sans-serif;max-width:720px;margin:48px auto;padding:0 16px;color:#222}
a.card{display:block;padding:20px;margin:12px 0;border:1px solid #ddd;border-radius:10px;text-decoration:none;color:inherit}
a.card:hover{border-color:#f5c400}
small{color:#777}
</style>
</head>
<body>
<h1>🍌 {{.Name}}</h1>
<small>v{{.Version}} · model {{.Model}}</small>
<a class="card" href="{{.StudioURL}}"><h2>🎨 Image Studio</h2><p>Generate and edit images with Gemini.</p></a>
<a class="card" href="{{.OnboardingURL}}"><h2>📁 Client Onboarding</h2><p>Register a client and upload reference images.</p></a>
<p><a href="/api/docs">API reference</a> · <a href="/health">health</a></p>
</body>
</html>
`))

// Dashboard links the two web surfaces.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := dashboardTmpl.Execute(w, map[string]string{
		"Name":          serviceName,
		"Version":       serviceVersion,
		"Model":         h.gen.Model(),
		"StudioURL":     h.opts.StudioURL,
		"OnboardingURL": h.opts.OnboardingURL,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("❌ Failed to render dashboard")
	}
}

// Health reports gateway readiness. It always answers 200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	nano := "not initialized"
	if h.gen.Ready() {
		nano = "ready"
	}
	cld := "not available"
	if h.storage.Ready() {
		cld = "ready"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"nano_banana": nano,
		"cloudinary":  cld,
		"services": map[string]string{
			"image_studio": h.opts.StudioURL,
			"onboarding":   h.opts.OnboardingURL,
		},
	})
}

// Docs lists every registered route with its methods.
func (h *Handler) Docs(w http.ResponseWriter, r *http.Request) {
	endpoints := map[string][]string{}
	if h.router != nil {
		_ = h.router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
			path, err := route.GetPathTemplate()
			if err != nil {
				return nil
			}
			methods, _ := route.GetMethods()
			endpoints[path] = append(endpoints[path], methods...)
			return nil
		})
	}

	paths := make([]string, 0, len(endpoints))
	for p := range endpoints {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	list := make([]map[string]string, 0, len(paths))
	for _, p := range paths {
		methods := endpoints[p]
		sort.Strings(methods)
		list = append(list, map[string]string{"path": p, "methods": strings.Join(methods, ",")})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      serviceName,
		"version":   serviceVersion,
		"model":     h.gen.Model(),
		"endpoints": list,
	})
}

// Pricing returns the per-image price, optionally with an estimate for ?images=n.
func (h *Handler) Pricing(w http.ResponseWriter, r *http.Request) {
	info := h.gen.PricingInfo()
	body := map[string]any{
		"cost_per_image_usd": info.CostPerImageUSD,
		"images_per_dollar":  info.ImagesPerDollar,
		"model_name":         info.ModelName,
	}
	if raw := r.URL.Query().Get("images"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, r, errInvalidCount)
			return
		}
		body["images"] = n
		body["estimated_cost_usd"] = h.gen.EstimateCost(n)
	}
	writeOK(w, body)
}

// page serves a static HTML file from the templates directory.
func (h *Handler) page(file, label string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := os.ReadFile(filepath.Join(h.opts.TemplatesDir, file))
		if err != nil {
			h.log.Error().Err(err).Str("file", file).Msg("❌ Failed to load page")
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   "Failed to load " + label + ": " + err.Error(),
			})
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(data)
	}
}
