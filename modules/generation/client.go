package generation

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"nanobanana-studio/modules/common/config"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// NewGenAIClient - Gemini API 또는 Vertex AI 백엔드용 genai 클라이언트 생성
func NewGenAIClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*genai.Client, error) {
	if cfg.GeminiBackend == "vertex" {
		creds, err := vertexCredentials(cfg, log)
		if err != nil {
			return nil, err
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			Backend:     genai.BackendVertexAI,
			Project:     cfg.VertexProject,
			Location:    cfg.VertexLocation,
			Credentials: creds,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
		}
		log.Info().Str("project", cfg.VertexProject).Str("location", cfg.VertexLocation).Msg("✅ [VertexAI] client initialized")
		return client, nil
	}

	if cfg.GeminiAPIKey == "" {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Genai client: %w", err)
	}
	return client, nil
}

// vertexCredentials resolves VERTEXAI_CREDENTIALS_JSON, then VERTEXAI_CREDENTIALS_PATH.
// A nil result lets genai fall back to Application Default Credentials.
func vertexCredentials(cfg *config.Config, log zerolog.Logger) (*auth.Credentials, error) {
	var raw []byte
	switch {
	case cfg.VertexCredsJSON != "":
		log.Info().Msg("✅ [VertexAI] Using VERTEXAI_CREDENTIALS_JSON from environment")
		raw = []byte(cfg.VertexCredsJSON)
	case cfg.VertexCredsPath != "":
		log.Info().Str("path", cfg.VertexCredsPath).Msg("✅ [VertexAI] Using credentials file")
		data, err := os.ReadFile(cfg.VertexCredsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		raw = data
	default:
		log.Warn().Msg("⚠️  [VertexAI] No explicit credentials found, using Application Default Credentials")
		return nil, nil
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		Scopes:          []string{cloudPlatformScope},
		CredentialsJSON: raw,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid Vertex AI credentials: %w", err)
	}
	return creds, nil
}

// New builds the gateway from configuration.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Service, error) {
	client, err := NewGenAIClient(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return NewService(client.Models, Config{
		Model:        cfg.GeminiModel,
		OutputDir:    cfg.OutputDir,
		CostPerImage: cfg.CostPerImage,
		Logger:       &log,
	}), nil
}
