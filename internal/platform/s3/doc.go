// Package s3 provides a small client for S3-compatible object storage.
//
// It covers what the S3 credential store needs: bucket bootstrap and
// object put/get/delete/list, with not-found conditions normalised to
// ErrObjectNotFound across AWS and S3-compatible services such as Hetzner
// Object Storage or MinIO.
package s3
