// Package storage keeps uploaded sources and generated archives on local disk
// and optionally publishes archives to S3.
package storage

import (
	"context"
	"io"
	"path"
)

// ArchiveContentType is the MIME type of a boot animation archive.
const ArchiveContentType = "application/zip"

// Storage is the port the job service uses for files.
type Storage interface {
	// SaveTemp streams data into a new temporary file and returns its path.
	// name is a hint; its extension is preserved. On error no file is left behind.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp opens a temporary file. The caller closes the ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the given temporary files, continuing past failures.
	CleanupTemp(ctx context.Context, paths []string) error

	// UploadToS3 publishes data under key and returns its URL.
	// Returns ErrS3NotConfigured when no bucket is configured.
	UploadToS3(ctx context.Context, key, contentType string, data io.Reader) (url string, err error)
}

// ArchiveKey is the object key a job's archive is published under.
func ArchiveKey(jobID, fileName string) string {
	return path.Join("bootanimations", jobID, fileName)
}
