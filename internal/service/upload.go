package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/bargeh-api/internal/observability"
)

const pdfMimeType = "application/pdf"

// FileStorage abstracts upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// storedFile describes a validated PDF persisted in file storage.
type storedFile struct {
	URL       string
	Name      string
	SizeBytes int64
	Checksum  string
}

// pdfUploader validates PDF uploads and forwards them to the configured storage.
type pdfUploader struct {
	storage FileStorage
	maxSize int64
	tracer  trace.Tracer
	now     func() time.Time
}

func newPDFUploader(storage FileStorage, maxSizeMB int) pdfUploader {
	if maxSizeMB <= 0 {
		maxSizeMB = 20
	}
	return pdfUploader{
		storage: storage,
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/bargeh-api/internal/service/upload"),
		now:     time.Now,
	}
}

// Store reads the file, checks size and content type, and uploads it under the given prefix.
func (u pdfUploader) Store(ctx context.Context, kind, prefix string, file *multipart.FileHeader) (storedFile, error) {
	ctx, span := u.tracer.Start(ctx, "upload.store")
	defer span.End()

	start := u.now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	span.SetAttributes(attribute.String("upload.kind", kind), attribute.Int64("upload.max_bytes", u.maxSize))
	if file == nil {
		span.SetStatus(codes.Error, "file missing")
		return storedFile{}, ErrFileRequired
	}
	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	if file.Size > u.maxSize {
		return storedFile{}, u.reject(span, "size", ErrUploadTooLarge)
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return storedFile{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, u.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return storedFile{}, err
	}
	if int64(buf.Len()) > u.maxSize {
		return storedFile{}, u.reject(span, "size", ErrUploadTooLarge)
	}

	detected := mimetype.Detect(buf.Bytes())
	span.SetAttributes(attribute.String("upload.detected_mime", detected.String()))
	if !detected.Is(pdfMimeType) {
		return storedFile{}, u.reject(span, "type", ErrUploadTypeNotAllowed)
	}

	checksum := sha256.Sum256(buf.Bytes())
	name := prefix + "-" + sanitizeFileName(file.Filename, u.now())

	url, err := u.storage.Upload(ctx, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.UploadRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return storedFile{}, fmt.Errorf("failed to upload file: %w", err)
	}

	observability.UploadRequests().WithLabelValues(kind).Inc()
	span.SetStatus(codes.Ok, "stored")

	return storedFile{
		URL:       url,
		Name:      strings.TrimSpace(filepath.Base(file.Filename)),
		SizeBytes: int64(buf.Len()),
		Checksum:  hex.EncodeToString(checksum[:]),
	}, nil
}

func (u pdfUploader) reject(span trace.Span, reason string, err error) error {
	observability.UploadRejected().WithLabelValues(reason).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	return err
}

func sanitizeFileName(name string, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", now.Unix())
	}
	return base + ".pdf"
}
