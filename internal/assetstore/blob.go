package assetstore

import (
	"context"
	"io"
	"os"
	"path"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"

	"captioner/internal/services"
)

// Bucket publishes into a gocloud.dev blob bucket (file://, mem://, or any
// driver linked into the binary) and builds URLs from a public base URL.
type Bucket struct {
	bucket        *blob.Bucket
	publicBaseURL string
}

// OpenBucket opens bucketURL. publicBaseURL is the HTTP prefix under which
// the bucket's keys are served.
func OpenBucket(ctx context.Context, bucketURL, publicBaseURL string) (*Bucket, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "upload", "open bucket", bucketURL, err)
	}
	return NewBucket(bucket, publicBaseURL), nil
}

// NewBucket wraps an already-open bucket.
func NewBucket(bucket *blob.Bucket, publicBaseURL string) *Bucket {
	return &Bucket{bucket: bucket, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

// Upload copies path to <folder>/<public id>.mp4.
func (b *Bucket) Upload(ctx context.Context, filePath string, opts UploadOptions) (Asset, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return Asset{}, services.Wrap(services.ErrValidation, "upload", "open output", filePath, err)
	}
	defer file.Close()

	publicID := opts.PublicID
	if publicID == "" {
		publicID = strings.TrimSuffix(path.Base(filePath), path.Ext(filePath))
	}
	key := publicID + path.Ext(filePath)
	if opts.Folder != "" {
		key = path.Join(opts.Folder, key)
	}

	writer, err := b.bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: "video/mp4"})
	if err != nil {
		return Asset{}, services.WrapContext(ctx, services.ErrUpstream, "upload", "open writer", key, err)
	}
	written, copyErr := io.Copy(writer, file)
	closeErr := writer.Close()
	if copyErr != nil {
		return Asset{}, services.WrapContext(ctx, services.ErrUpstream, "upload", "write object", key, copyErr)
	}
	if closeErr != nil {
		return Asset{}, services.WrapContext(ctx, services.ErrUpstream, "upload", "commit object", key, closeErr)
	}
	return Asset{
		URL:      b.publicBaseURL + "/" + key,
		PublicID: strings.TrimSuffix(key, path.Ext(key)),
		Bytes:    written,
	}, nil
}

// Close releases the underlying bucket.
func (b *Bucket) Close() error {
	return b.bucket.Close()
}
