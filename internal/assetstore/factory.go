package assetstore

import (
	"context"
	"fmt"
	"net/http"

	"captioner/internal/config"
	"captioner/internal/services"
)

// NewFromConfig builds the configured store. The returned close function
// releases backend resources and is never nil.
func NewFromConfig(ctx context.Context, cfg *config.Config, client *http.Client) (Store, func() error, error) {
	noop := func() error { return nil }
	if cfg == nil {
		return nil, noop, services.Wrap(services.ErrConfiguration, "upload", "store", "config required", nil)
	}
	switch cfg.Storage.Backend {
	case "cloudinary":
		store, err := NewCloudinary(CloudinaryConfig{
			CloudName:    cfg.Storage.CloudinaryCloudName,
			APIKey:       cfg.Storage.CloudinaryAPIKey,
			APISecret:    cfg.Storage.CloudinaryAPISecret,
			UploadPrefix: cfg.Storage.CloudinaryBaseURL,
		}, client)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case "blob":
		bucket, err := OpenBucket(ctx, cfg.Storage.BlobURL, cfg.Storage.PublicBaseURL)
		if err != nil {
			return nil, noop, err
		}
		return bucket, bucket.Close, nil
	default:
		return nil, noop, services.Wrap(services.ErrConfiguration, "upload", "store", fmt.Sprintf("unknown backend %q", cfg.Storage.Backend), nil)
	}
}
