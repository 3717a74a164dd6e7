// Package assetstore publishes rendered videos and returns their public URL.
//
// Cloudinary talks to the signed upload REST API directly, switching to
// chunked uploads for large files. Bucket targets any gocloud.dev blob URL,
// which also backs local publishing for the CLI.
package assetstore
