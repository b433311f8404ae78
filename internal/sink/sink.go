// Package sink opens the output file the Writer Driver streams into.
// It adapts github.com/pingcap/tidb/br/pkg/storage's ExternalStorage
// abstraction — local disk by default, S3/GCS when configured — into
// a plain io.WriteCloser, the way the teacher's config.GetStore plus
// its writeWrapper (src/generator/parquet_generator.go) adapt a
// storage.ExternalFileWriter for a context-free consumer.
package sink

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pingcap/tidb/br/pkg/storage"

	"mssqlparquet/internal/config"
	"mssqlparquet/internal/errs"
)

// Sink is an opened output destination. Write tracks the bytes
// actually handed to the backend; Close finalizes it.
type Sink struct {
	writer storage.ExternalFileWriter
	ctx    context.Context
	// Written is the running count of bytes handed to the backend.
	Written int64
}

// Open resolves cfg's S3/GCS settings (or local disk, by default) into
// a storage.ExternalStorage backend rooted at path's directory, then
// creates path's base name within it — mirroring the teacher's
// GetStore followed by util.OpenWriter.
func Open(ctx context.Context, path string, cfg config.OutputConfig) (*Sink, error) {
	dir, name := filepath.Dir(path), filepath.Base(path)
	if strings.Contains(path, "://") {
		// filepath.Dir would collapse the URL's "//" and drop the bucket.
		i := strings.LastIndexByte(path, '/')
		dir, name = path[:i], path[i+1:]
	}

	backend, err := storage.ParseBackend(dir, backendOptions(cfg))
	if err != nil {
		return nil, errs.Wrap(errs.IOFailure, err, "resolving output backend for %s", path)
	}

	store, err := storage.NewWithDefaultOpt(ctx, backend)
	if err != nil {
		return nil, errs.Wrap(errs.IOFailure, err, "opening output backend for %s", path)
	}

	writer, err := store.Create(ctx, name, &storage.WriterOption{Concurrency: 1})
	if err != nil {
		return nil, errs.Wrap(errs.IOFailure, err, "creating output file %s", path)
	}

	return &Sink{writer: writer, ctx: ctx}, nil
}

func backendOptions(cfg config.OutputConfig) *storage.BackendOptions {
	switch {
	case cfg.S3 != nil:
		return &storage.BackendOptions{S3: storage.S3BackendOptions{
			Region:          cfg.S3.Region,
			AccessKey:       cfg.S3.AccessKey,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Provider:        cfg.S3.Provider,
			Endpoint:        cfg.S3.Endpoint,
			RoleARN:         cfg.S3.RoleArn,
		}}
	case cfg.GCS != nil:
		return &storage.BackendOptions{GCS: storage.GCSBackendOptions{
			CredentialsFile: cfg.GCS.Credential,
		}}
	default:
		return nil
	}
}

// Write implements io.Writer over the context-bound backend writer.
func (s *Sink) Write(p []byte) (int, error) {
	n, err := s.writer.Write(s.ctx, p)
	s.Written += int64(n)
	return n, err
}

// Close finalizes the backend write (flushing multipart uploads for
// remote backends).
func (s *Sink) Close() error {
	return s.writer.Close(s.ctx)
}
