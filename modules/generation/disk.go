package generation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// save writes img into the output directory. An explicit filename wins over
// the "{base}_{unix}" default. Existing files are never overwritten: a -1, -2
// suffix is appended until the name is free.
func (s *Service) save(img *Image, filename, base string) error {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	name := strings.TrimSpace(filepath.Base(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = fmt.Sprintf("%s_%d%s", base, s.now().Unix(), extensionFor(img.MIMEType))
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		full := filepath.Join(s.outputDir, candidate)

		f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", full, err)
		}

		if _, err := f.Write(img.Data); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", full, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close %s: %w", full, err)
		}

		img.Path = full
		s.log.Info().Str("path", full).Msg("💾 Image saved")
		return nil
	}
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
