package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/rs/zerolog"

	"nanobanana-studio/modules/client"
	"nanobanana-studio/modules/common/config"
	"nanobanana-studio/modules/common/logger"
	"nanobanana-studio/modules/common/utils"
)

const webpQuality = 90

// Config holds the credentials the gateway hands out or signs with.
type Config struct {
	CloudName    string
	APIKey       string
	APISecret    string
	UploadPreset string
	UploadFormat string
	Logger       *zerolog.Logger
}

// Service is the Asset Storage Gateway. Every provider failure comes back as
// a *StorageError; nothing panics past this boundary.
type Service struct {
	provider Provider
	cfg      Config
	log      zerolog.Logger
	clock    *Clock
	now      func() time.Time
}

// NewService - provider가 nil이면 모든 호출이 ErrNotConfigured
func NewService(provider Provider, cfg Config) *Service {
	l := logger.Discard()
	if cfg.Logger != nil {
		l = *cfg.Logger
	}
	if cfg.UploadPreset == "" {
		cfg.UploadPreset = "ml_default"
	}
	return &Service{
		provider: provider,
		cfg:      cfg,
		log:      l.With().Str("module", "cloudinary").Logger(),
		clock:    NewClock(time.Now),
		now:      time.Now,
	}
}

// New builds the gateway from configuration. Missing credentials give a
// disabled gateway, not an error.
func New(cfg *config.Config, log zerolog.Logger) (*Service, error) {
	svcCfg := Config{
		CloudName:    cfg.CloudinaryCloudName,
		APIKey:       cfg.CloudinaryAPIKey,
		APISecret:    cfg.CloudinaryAPISecret,
		UploadPreset: cfg.CloudinaryUploadPreset,
		UploadFormat: cfg.UploadFormat,
		Logger:       &log,
	}
	if !cfg.CloudinaryEnabled() {
		log.Warn().Msg("⚠️  Cloudinary credentials missing, images will be returned as base64")
		return NewService(nil, svcCfg), nil
	}

	provider, err := NewCloudinaryProvider(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		return nil, err
	}
	log.Info().Str("cloud", cfg.CloudinaryCloudName).Msg("✅ Cloudinary initialized")
	return NewService(provider, svcCfg), nil
}

// Ready reports whether a provider is configured.
func (s *Service) Ready() bool {
	return s != nil && s.provider != nil
}

// Upload stores data under {clientID}/{folderType} as {stem}_{timestamp}.
// Existing assets are never overwritten.
func (s *Service) Upload(ctx context.Context, data []byte, folderType FolderType, clientID, filename string) (*UploadResult, error) {
	if !s.Ready() {
		return nil, ErrNotConfigured
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, ErrMissingClient
	}
	if !folderType.isClientFolder() {
		return nil, ErrInvalidFolderType
	}
	if !utils.IsImage(data) {
		return nil, ErrNotImage
	}

	stem := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	if stem == "" || stem == "." || stem == "/" {
		stem = "image"
	}
	folder := clientID + "/" + string(folderType)
	publicID := fmt.Sprintf("%s_%d", stem, s.clock.Next())

	if s.cfg.UploadFormat == "webp" {
		converted, err := utils.ConvertToWebP(data, webpQuality)
		if err != nil {
			s.log.Warn().Err(err).Msg("⚠️  WebP conversion failed, uploading original")
		} else {
			s.log.Debug().Int("before", len(data)).Int("after", len(converted)).Msg("🔄 Converted to WebP")
			data = converted
		}
	}

	asset, err := s.provider.Upload(ctx, data, folder, publicID)
	if err != nil {
		s.log.Error().Err(err).Str("folder", folder).Msg("❌ Upload failed")
		return nil, &StorageError{Op: "upload", Err: err}
	}

	s.log.Info().Str("public_id", asset.PublicID).Int("bytes", asset.Bytes).Msg("📤 Uploaded")
	return &UploadResult{
		URL:      asset.SecureURL,
		PublicID: asset.PublicID,
		Width:    asset.Width,
		Height:   asset.Height,
		Bytes:    asset.Bytes,
		Format:   asset.Format,
	}, nil
}

// List returns a single unpaginated page of one sub-folder.
func (s *Service) List(ctx context.Context, folderType FolderType, clientID string, maxResults int) (*ListResult, error) {
	if !s.Ready() {
		return nil, ErrNotConfigured
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, ErrMissingClient
	}
	if !folderType.isClientFolder() {
		return nil, ErrInvalidFolderType
	}
	if maxResults <= 0 {
		maxResults = DefaultListLimit
	}

	images, _, err := s.provider.ListAssets(ctx, prefixFor(clientID, folderType), clampLimit(maxResults), "")
	if err != nil {
		s.log.Error().Err(err).Str("client", clientID).Msg("❌ List failed")
		return nil, &StorageError{Op: "list", Err: err}
	}
	return &ListResult{Images: images, TotalCount: len(images)}, nil
}

// ListPaginated fetches one provider page and then applies the date filter
// to it. Filtering never pulls further pages, so a page can come back short
// or empty while HasMore is still true.
func (s *Service) ListPaginated(ctx context.Context, q ListQuery) (*Page, error) {
	if !s.Ready() {
		return nil, ErrNotConfigured
	}
	clientID := strings.TrimSpace(q.ClientID)
	if clientID == "" {
		return nil, ErrMissingClient
	}
	folderType := q.FolderType
	if folderType == "" {
		folderType = FolderAll
	}
	if folderType != FolderAll && !folderType.isClientFolder() {
		return nil, ErrInvalidFolderType
	}
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultPageSize
	}

	filter, err := newDateFilter(q.StartDate, q.EndDate)
	if err != nil {
		return nil, err
	}

	images, next, err := s.provider.ListAssets(ctx, prefixFor(clientID, folderType), clampLimit(maxResults), q.Cursor)
	if err != nil {
		s.log.Error().Err(err).Str("client", clientID).Str("folder_type", string(folderType)).Msg("❌ Paginated list failed")
		return nil, &StorageError{Op: "list", Err: err}
	}

	images = filter.apply(images)
	s.log.Debug().
		Str("client", clientID).
		Str("folder_type", string(folderType)).
		Int("count", len(images)).
		Bool("has_more", next != "").
		Msg("📄 Page fetched")

	return &Page{
		Images:     images,
		TotalCount: len(images),
		NextCursor: next,
		HasMore:    next != "",
	}, nil
}

// CheckClientExists asks the provider for the client's sub-folders. A
// not-found answer is a normal result with Exists false.
func (s *Service) CheckClientExists(ctx context.Context, clientID string) (*ClientStatus, error) {
	if !s.Ready() {
		return nil, ErrNotConfigured
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, ErrMissingClient
	}

	subfolders, err := s.provider.SubFolders(ctx, clientID)
	if errors.Is(err, ErrFolderNotFound) {
		return &ClientStatus{Exists: false, FolderPath: clientID}, nil
	}
	if err != nil {
		s.log.Error().Err(err).Str("client", clientID).Msg("❌ Client check failed")
		return nil, &StorageError{Op: "check client", Err: err}
	}
	if subfolders == nil {
		subfolders = []string{}
	}
	return &ClientStatus{Exists: true, FolderPath: clientID, Subfolders: subfolders}, nil
}

// ClientExists adapts CheckClientExists to the lifecycle's existence probe.
func (s *Service) ClientExists(ctx context.Context, clientID string) (bool, error) {
	status, err := s.CheckClientExists(ctx, clientID)
	if err != nil {
		return false, err
	}
	return status.Exists, nil
}

// CreateClientFolders validates the client id and declares the three
// sub-folders. The provider is not touched: folders appear on first upload.
func (s *Service) CreateClientFolders(clientID string) (*FolderSetup, error) {
	clientID = strings.TrimSpace(clientID)
	if err := client.Validate(clientID); err != nil {
		return nil, err
	}

	folders := make([]string, 0, len(ClientFolders))
	for _, f := range ClientFolders {
		folders = append(folders, string(f))
	}
	return &FolderSetup{
		FoldersCreated: folders,
		FolderPath:     clientID,
		Message:        fmt.Sprintf("Client %q is ready. Folders will be created automatically when you upload images.", clientID),
	}, nil
}

// GetUploadConfig - 업로드 위젯 설정 (input 폴더 대상)
func (s *Service) GetUploadConfig(clientID string) (*UploadConfig, error) {
	if !s.Ready() {
		return nil, ErrNotConfigured
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, ErrMissingClient
	}
	return &UploadConfig{
		CloudName:    s.cfg.CloudName,
		APIKey:       s.cfg.APIKey,
		Folder:       clientID + "/" + string(FolderInput),
		UploadPreset: s.cfg.UploadPreset,
	}, nil
}

// ListClientFolders returns the root-level folder names.
func (s *Service) ListClientFolders(ctx context.Context) ([]string, error) {
	if !s.Ready() {
		return nil, ErrNotConfigured
	}
	folders, err := s.provider.RootFolders(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("❌ Root folder listing failed")
		return nil, &StorageError{Op: "list folders", Err: err}
	}
	sort.Strings(folders)
	return folders, nil
}

// GetImageInfo - 단일 에셋 메타데이터 조회
func (s *Service) GetImageInfo(ctx context.Context, publicID string) (*Asset, error) {
	if !s.Ready() {
		return nil, ErrNotConfigured
	}
	asset, err := s.provider.Asset(ctx, publicID)
	if err != nil {
		return nil, &StorageError{Op: "image info", Err: err}
	}
	return asset, nil
}

// Delete removes an asset. The provider's answer is passed through; only
// "ok" counts as deleted.
func (s *Service) Delete(ctx context.Context, publicID string) (*DeleteResult, error) {
	if !s.Ready() {
		return nil, ErrNotConfigured
	}
	result, err := s.provider.Destroy(ctx, publicID)
	if err != nil {
		s.log.Error().Err(err).Str("public_id", publicID).Msg("❌ Delete failed")
		return nil, &StorageError{Op: "delete", Err: err}
	}
	s.log.Info().Str("public_id", publicID).Str("result", result).Msg("🗑️  Delete")
	return &DeleteResult{Deleted: result == "ok", Result: result}, nil
}

// SignUpload signs widget upload parameters with the API secret. folder and
// timestamp are added when the caller did not send them.
func (s *Service) SignUpload(folder string, params map[string]any) (*Signature, error) {
	if !s.Ready() || s.cfg.APISecret == "" {
		return nil, ErrNotConfigured
	}

	values := url.Values{}
	for k, v := range params {
		values.Set(k, stringify(v))
	}
	if values.Get("folder") == "" {
		values.Set("folder", folder)
	}
	if values.Get("timestamp") == "" {
		values.Set("timestamp", strconv.FormatInt(s.now().Unix(), 10))
	}
	timestamp, err := strconv.ParseInt(values.Get("timestamp"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", values.Get("timestamp"), err)
	}

	signature, err := api.SignParameters(values, s.cfg.APISecret)
	if err != nil {
		return nil, &StorageError{Op: "sign", Err: err}
	}
	return &Signature{Signature: signature, Timestamp: timestamp, APIKey: s.cfg.APIKey}, nil
}

// IsCloudinaryURL is a loose check used before fetching remote images.
func IsCloudinaryURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "cloudinary.com" || strings.HasSuffix(host, ".cloudinary.com")
}

// ParseFolderType accepts the request spelling of a folder type.
func ParseFolderType(raw string, allowAll bool) (FolderType, error) {
	ft := FolderType(strings.ToLower(strings.TrimSpace(raw)))
	if ft == FolderAll && allowAll {
		return ft, nil
	}
	if !ft.isClientFolder() {
		return "", ErrInvalidFolderType
	}
	return ft, nil
}

func (f FolderType) isClientFolder() bool {
	return f == FolderInput || f == FolderGenerated || f == FolderEdited
}

// prefixFor ends in a slash so "acme" never matches "acme-labs".
func prefixFor(clientID string, folderType FolderType) string {
	if folderType == FolderAll {
		return clientID + "/"
	}
	return clientID + "/" + string(folderType) + "/"
}

func clampLimit(n int) int {
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, stringify(p))
		}
		return strings.Join(parts, ",")
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// Clock hands out strictly increasing unix-second suffixes, so two uploads
// in the same second never share a public id.
type Clock struct {
	now  func() time.Time
	last atomic.Int64
}

func NewClock(now func() time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Next() int64 {
	for {
		last := c.last.Load()
		next := c.now().Unix()
		if next <= last {
			next = last + 1
		}
		if c.last.CompareAndSwap(last, next) {
			return next
		}
	}
}
