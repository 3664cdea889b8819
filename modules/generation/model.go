package generation

import (
	"errors"
	"fmt"
)

// DefaultRestorePrompt is sent when Restore is called without a custom prompt.
const DefaultRestorePrompt = "Restore and colorize this old photograph. Enhance the image quality, remove any damage or artifacts, and add realistic colors while preserving the original composition and subjects."

var (
	// ErrNotConfigured - 모델 자격증명 없이 생성된 게이트웨이
	ErrNotConfigured = errors.New("image generation is not configured: missing model API key")
	// ErrNoImage is the cause of a GenerationError when the model only answered with text.
	ErrNoImage = errors.New("no image in response")
	// ErrNotImage is the cause of a FetchError when the source bytes are not an image.
	ErrNotImage = errors.New("source is not an image")
)

// GenerationError wraps failures of the remote model call itself.
type GenerationError struct {
	Op          string // generate, edit, restore
	RateLimited bool
	Err         error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// FetchError is returned when the source image could not be loaded, before
// any model call was made.
type FetchError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Image - 모델이 반환한 이미지
type Image struct {
	Data     []byte
	MIMEType string
	// Path is set when the image was written to disk.
	Path string
}

// Source describes the image to edit. Exactly one of URL, Path or Data is used,
// in that order of precedence.
type Source struct {
	URL      string
	Path     string
	Data     []byte
	MIMEType string
}

// Options controls output handling of a single call.
type Options struct {
	SaveToDisk     bool
	OutputFilename string
}

// PricingInfo mirrors the published per-image pricing of the model.
type PricingInfo struct {
	CostPerImageUSD float64 `json:"cost_per_image_usd"`
	ImagesPerDollar int     `json:"images_per_dollar"`
	ModelName       string  `json:"model_name"`
}
