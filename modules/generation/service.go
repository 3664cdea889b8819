package generation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"nanobanana-studio/modules/common/logger"
	"nanobanana-studio/modules/common/utils"
)

const (
	fetchTimeout   = 30 * time.Second
	maxSourceBytes = 50 << 20
)

// ContentGenerator is the subset of *genai.Models the gateway calls.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config holds the gateway settings.
type Config struct {
	Model        string
	OutputDir    string
	CostPerImage float64
	HTTPClient   *http.Client
	Logger       *zerolog.Logger
}

// Service wraps the remote multimodal model. It keeps no state between calls
// and never retries.
type Service struct {
	models       ContentGenerator
	model        string
	outputDir    string
	costPerImage float64
	httpClient   *http.Client
	log          zerolog.Logger
	now          func() time.Time
}

// NewService - models가 nil이면 모든 호출이 ErrNotConfigured로 실패
func NewService(models ContentGenerator, cfg Config) *Service {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: fetchTimeout}
	}
	l := logger.Discard()
	if cfg.Logger != nil {
		l = *cfg.Logger
	}
	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join("images", "output")
	}

	return &Service{
		models:       models,
		model:        cfg.Model,
		outputDir:    outputDir,
		costPerImage: cfg.CostPerImage,
		httpClient:   httpClient,
		log:          l.With().Str("module", "nanobanana").Logger(),
		now:          time.Now,
	}
}

// Ready reports whether a model client is configured.
func (s *Service) Ready() bool {
	return s != nil && s.models != nil
}

// Model returns the configured model name.
func (s *Service) Model() string {
	return s.model
}

// Generate - 텍스트 프롬프트로 이미지 생성
func (s *Service) Generate(ctx context.Context, prompt string, opts Options) (*Image, error) {
	if !s.Ready() {
		return nil, ErrNotConfigured
	}
	s.log.Info().Str("prompt", logger.Truncate(prompt, 50)).Msg("🎨 Generating image")

	img, err := s.call(ctx, "generate", []*genai.Part{genai.NewPartFromText(prompt)})
	if err != nil {
		return nil, err
	}

	if opts.SaveToDisk {
		if err := s.save(img, opts.OutputFilename, "generated"); err != nil {
			return nil, err
		}
	}
	return img, nil
}

// Edit sends the instruction and the source image as one multimodal request.
func (s *Service) Edit(ctx context.Context, src Source, prompt string, opts Options) (*Image, error) {
	return s.transform(ctx, "edit", src, prompt, opts)
}

// Restore - 오래된 사진 복원 및 컬러화
func (s *Service) Restore(ctx context.Context, src Source, customPrompt string, opts Options) (*Image, error) {
	prompt := strings.TrimSpace(customPrompt)
	if prompt == "" {
		prompt = DefaultRestorePrompt
	}
	return s.transform(ctx, "restore", src, prompt, opts)
}

func (s *Service) transform(ctx context.Context, op string, src Source, prompt string, opts Options) (*Image, error) {
	if !s.Ready() {
		return nil, ErrNotConfigured
	}
	s.log.Info().
		Str("op", op).
		Str("source", sourceLabel(src)).
		Str("prompt", logger.Truncate(prompt, 50)).
		Msg("✏️  Transforming image")

	data, mime, err := s.loadSource(ctx, src)
	if err != nil {
		return nil, err
	}

	img, err := s.call(ctx, op, []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(data, mime),
	})
	if err != nil {
		return nil, err
	}

	if opts.SaveToDisk {
		base := strings.TrimSuffix(path.Base(sourceLabel(src)), path.Ext(sourceLabel(src)))
		if base == "" || base == "." || base == "/" {
			base = "image"
		}
		if err := s.save(img, opts.OutputFilename, base+"_"+pastTense(op)); err != nil {
			return nil, err
		}
	}
	return img, nil
}

func (s *Service) call(ctx context.Context, op string, parts []*genai.Part) (*Image, error) {
	content := &genai.Content{Role: "user", Parts: parts}

	result, err := s.models.GenerateContent(ctx, s.model, []*genai.Content{content}, nil)
	if err != nil {
		s.log.Error().Err(err).Str("op", op).Msg("❌ Gemini API error")
		return nil, &GenerationError{Op: op, RateLimited: isRateLimited(err), Err: err}
	}

	img, err := s.extractImage(result)
	if err != nil {
		return nil, &GenerationError{Op: op, Err: err}
	}
	s.log.Info().Str("op", op).Int("bytes", len(img.Data)).Str("mime", img.MIMEType).Msg("✅ Image received")
	return img, nil
}

// extractImage returns the first inline image part in response order. Text
// parts seen on the way are only logged.
func (s *Service) extractImage(result *genai.GenerateContentResponse) (*Image, error) {
	if result == nil {
		return nil, ErrNoImage
	}
	for _, candidate := range result.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mime := part.InlineData.MIMEType
				if mime == "" {
					mime = utils.DetectMIME(part.InlineData.Data)
				}
				if !strings.HasPrefix(mime, "image/") {
					continue
				}
				return &Image{Data: part.InlineData.Data, MIMEType: mime}, nil
			}
			if part.Text != "" {
				s.log.Info().Str("text", logger.Truncate(part.Text, 200)).Msg("📄 Response text")
			}
		}
	}
	return nil, ErrNoImage
}

func (s *Service) loadSource(ctx context.Context, src Source) ([]byte, string, error) {
	var data []byte
	switch {
	case src.URL != "":
		fetched, err := s.FetchImage(ctx, src.URL)
		if err != nil {
			return nil, "", err
		}
		data = fetched
	case src.Path != "":
		read, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, "", &FetchError{Source: src.Path, Err: err}
		}
		data = read
	default:
		data = src.Data
	}

	mime := src.MIMEType
	if mime == "" || src.URL != "" || src.Path != "" {
		mime = utils.DetectMIME(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, "", &FetchError{Source: sourceLabel(src), Err: ErrNotImage}
	}
	return data, mime, nil
}

// FetchImage downloads a remote image with the 30 second fetch timeout.
func (s *Service) FetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Source: url, Err: err}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.log.Warn().Err(err).Str("url", url).Msg("❌ Image download failed")
		return nil, &FetchError{Source: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.log.Warn().Int("status", resp.StatusCode).Str("url", url).Msg("❌ Image download failed")
		return nil, &FetchError{Source: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return nil, &FetchError{Source: url, Err: fmt.Errorf("failed to read image data: %w", err)}
	}
	s.log.Debug().Int("bytes", len(data)).Str("url", url).Msg("📥 Image downloaded")
	return data, nil
}

// EstimateCost returns the estimated USD cost for n images.
func (s *Service) EstimateCost(n int) float64 {
	return float64(n) * s.costPerImage
}

// PricingInfo - 모델 가격 정보
func (s *Service) PricingInfo() PricingInfo {
	perDollar := 0
	if s.costPerImage > 0 {
		perDollar = int(1 / s.costPerImage)
	}
	return PricingInfo{
		CostPerImageUSD: s.costPerImage,
		ImagesPerDollar: perDollar,
		ModelName:       s.model,
	}
}

// isRateLimited - 429 Rate Limit 에러인지 확인
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted")
}

func sourceLabel(src Source) string {
	switch {
	case src.URL != "":
		if u := strings.SplitN(src.URL, "?", 2)[0]; u != "" {
			return u
		}
		return src.URL
	case src.Path != "":
		return filepath.ToSlash(src.Path)
	default:
		return "image"
	}
}

func pastTense(op string) string {
	switch op {
	case "edit":
		return "edited"
	case "restore":
		return "restored"
	default:
		return op
	}
}
