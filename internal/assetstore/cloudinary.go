package assetstore

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"captioner/internal/services"
)

// DefaultUploadPrefix is the Cloudinary API host the SDK posts to.
const DefaultUploadPrefix = "https://api.cloudinary.com"

// CloudinaryConfig holds upload API credentials.
type CloudinaryConfig struct {
	CloudName    string
	APIKey       string
	APISecret    string
	UploadPrefix string
	// ChunkSize overrides the SDK's chunked-upload threshold when positive.
	ChunkSize int64
}

// Cloudinary uploads through the signed upload API of the Cloudinary SDK.
type Cloudinary struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinary constructs a Cloudinary store. A nil client keeps the SDK's
// default HTTP client.
func NewCloudinary(cfg CloudinaryConfig, client *http.Client) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(
		strings.TrimSpace(cfg.CloudName),
		strings.TrimSpace(cfg.APIKey),
		strings.TrimSpace(cfg.APISecret),
	)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "upload", "cloudinary", "invalid credentials", err)
	}
	cld.Config.URL.Secure = true
	if prefix := strings.TrimRight(strings.TrimSpace(cfg.UploadPrefix), "/"); prefix != "" {
		cld.Config.API.UploadPrefix = prefix
	}
	if cfg.ChunkSize > 0 {
		cld.Config.API.ChunkSize = cfg.ChunkSize
	}
	if client != nil {
		cld.Upload.Client = *client
	}
	return &Cloudinary{cld: cld}, nil
}

// Upload sends path to the video upload endpoint and returns the secure URL.
// Files above the chunk size are split by the SDK into ranged requests.
func (c *Cloudinary) Upload(ctx context.Context, path string, opts UploadOptions) (Asset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Asset{}, services.Wrap(services.ErrValidation, "upload", "stat output", path, err)
	}
	if opts.ResourceType == "" {
		opts.ResourceType = ResourceVideo
	}

	result, err := c.cld.Upload.Upload(ctx, path, uploader.UploadParams{
		ResourceType: opts.ResourceType,
		Folder:       opts.Folder,
		PublicID:     opts.PublicID,
	})
	if err != nil {
		return Asset{}, services.WrapContext(ctx, services.ErrUpstream, "upload", "cloudinary request", "", err)
	}
	if result == nil {
		return Asset{}, services.Wrap(services.ErrUpstream, "upload", "cloudinary request", "empty response", nil)
	}
	if message := strings.TrimSpace(result.Error.Message); message != "" {
		return Asset{}, services.Wrap(services.ErrUpstream, "upload", "cloudinary request", message, nil)
	}

	url := result.SecureURL
	if url == "" {
		url = result.URL
	}
	if strings.TrimSpace(url) == "" {
		return Asset{}, services.Wrap(services.ErrUpstream, "upload", "cloudinary", "response carried no URL", nil)
	}
	size := int64(result.Bytes)
	if size == 0 {
		size = info.Size()
	}
	return Asset{URL: url, PublicID: result.PublicID, Bytes: size}, nil
}
