package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Store keeps submission and template PDFs in Cloudinary.
type Store struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary store.
func New(cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Store{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "cloudinary_store").Logger(),
	}, nil
}

// Upload sends the file to Cloudinary and returns its secure URL. Names are
// expected to be unique already, so existing assets are never overwritten.
func (s *Store) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	publicID := PublicID(name)
	if publicID == "" {
		return "", fmt.Errorf("invalid asset name %q", name)
	}

	overwrite := false
	result, err := s.client.Upload.Upload(ctx, reader, uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     publicID,
		ResourceType: "auto",
		Overwrite:    &overwrite,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected asset: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", result.PublicID).Int("bytes", result.Bytes).Msg("file uploaded to cloudinary")
	return result.SecureURL, nil
}

// PublicID derives the Cloudinary public id from a storage name.
func PublicID(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '-'
	}, base)
	return strings.Trim(base, "-")
}
