package assets

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/admin"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Provider is the remote media store port. Implementations return
// ErrFolderNotFound from SubFolders when the folder does not exist.
type Provider interface {
	Upload(ctx context.Context, data []byte, folder, publicID string) (*Asset, error)
	ListAssets(ctx context.Context, prefix string, maxResults int, cursor string) ([]Asset, string, error)
	RootFolders(ctx context.Context) ([]string, error)
	SubFolders(ctx context.Context, folder string) ([]string, error)
	Asset(ctx context.Context, publicID string) (*Asset, error)
	Destroy(ctx context.Context, publicID string) (string, error)
}

// CloudinaryProvider implements Provider on the Cloudinary Upload and Admin APIs.
type CloudinaryProvider struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinaryProvider - Cloudinary 클라이언트 초기화
func NewCloudinaryProvider(cloudName, apiKey, apiSecret string) (*CloudinaryProvider, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloudinary client: %w", err)
	}
	return &CloudinaryProvider{cld: cld}, nil
}

func (p *CloudinaryProvider) Upload(ctx context.Context, data []byte, folder, publicID string) (*Asset, error) {
	resp, err := p.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     publicID,
		Folder:       folder,
		ResourceType: "image",
		Overwrite:    api.Bool(false),
	})
	if err != nil {
		return nil, err
	}
	if resp.Error.Message != "" {
		return nil, fmt.Errorf("%s", resp.Error.Message)
	}
	return &Asset{
		PublicID:  resp.PublicID,
		SecureURL: resp.SecureURL,
		Width:     resp.Width,
		Height:    resp.Height,
		Format:    resp.Format,
		Bytes:     resp.Bytes,
		CreatedAt: resp.CreatedAt,
	}, nil
}

func (p *CloudinaryProvider) ListAssets(ctx context.Context, prefix string, maxResults int, cursor string) ([]Asset, string, error) {
	resp, err := p.cld.Admin.Assets(ctx, admin.AssetsParams{
		AssetType:    "image",
		DeliveryType: "upload",
		Prefix:       prefix,
		MaxResults:   maxResults,
		NextCursor:   cursor,
		Tags:         api.Bool(true),
		Context:      api.Bool(true),
	})
	if err != nil {
		return nil, "", err
	}
	if resp.Error.Message != "" {
		return nil, "", fmt.Errorf("%s", resp.Error.Message)
	}

	out := make([]Asset, 0, len(resp.Assets))
	for _, a := range resp.Assets {
		out = append(out, Asset{
			PublicID:  a.PublicID,
			SecureURL: a.SecureURL,
			Width:     a.Width,
			Height:    a.Height,
			Format:    a.Format,
			Bytes:     a.Bytes,
			CreatedAt: a.CreatedAt,
		})
	}
	return out, resp.NextCursor, nil
}

func (p *CloudinaryProvider) RootFolders(ctx context.Context) ([]string, error) {
	resp, err := p.cld.Admin.RootFolders(ctx, admin.RootFoldersParams{})
	if err != nil {
		return nil, err
	}
	if resp.Error.Message != "" {
		return nil, fmt.Errorf("%s", resp.Error.Message)
	}
	names := make([]string, 0, len(resp.Folders))
	for _, f := range resp.Folders {
		names = append(names, f.Name)
	}
	return names, nil
}

func (p *CloudinaryProvider) SubFolders(ctx context.Context, folder string) ([]string, error) {
	resp, err := p.cld.Admin.SubFolders(ctx, admin.SubFoldersParams{Folder: folder})
	if err != nil {
		if isNotFound(err.Error()) {
			return nil, ErrFolderNotFound
		}
		return nil, err
	}
	if resp.Error.Message != "" {
		if isNotFound(resp.Error.Message) {
			return nil, ErrFolderNotFound
		}
		return nil, fmt.Errorf("%s", resp.Error.Message)
	}
	names := make([]string, 0, len(resp.Folders))
	for _, f := range resp.Folders {
		names = append(names, f.Name)
	}
	return names, nil
}

func (p *CloudinaryProvider) Asset(ctx context.Context, publicID string) (*Asset, error) {
	resp, err := p.cld.Admin.Asset(ctx, admin.AssetParams{PublicID: publicID})
	if err != nil {
		return nil, err
	}
	if resp.Error.Message != "" {
		return nil, fmt.Errorf("%s", resp.Error.Message)
	}
	return &Asset{
		PublicID:  resp.PublicID,
		SecureURL: resp.SecureURL,
		Width:     resp.Width,
		Height:    resp.Height,
		Format:    resp.Format,
		Bytes:     resp.Bytes,
		CreatedAt: resp.CreatedAt,
	}, nil
}

func (p *CloudinaryProvider) Destroy(ctx context.Context, publicID string) (string, error) {
	resp, err := p.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return "", err
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("%s", resp.Error.Message)
	}
	return resp.Result, nil
}

// isNotFound - Admin API의 404 메시지 판별
func isNotFound(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "can't find folder") || strings.Contains(msg, "not found")
}
