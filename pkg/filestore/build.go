package filestore

import (
	"context"
	"fmt"

	"github.com/kgstore/kgstore/pkg/config"
	"github.com/rs/zerolog"
)

// BuildRegistry constructs a Registry with providers for every backend that
// has usable credentials configured, always including the local provider
// under the empty scheme. Cloud providers that fail to construct (missing
// credentials, unreachable endpoint) are skipped with a warning rather than
// failing the whole registry, so a local-only deployment never needs cloud
// SDKs to succeed.
func BuildRegistry(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Registry, error) {
	reg := NewRegistry()
	if err := reg.Register("", NewLocalProvider(log)); err != nil {
		return nil, err
	}

	if s3p, err := NewS3Provider(ctx, S3Options{
		Region:          cfg.Credentials.S3Region,
		Endpoint:        cfg.Credentials.S3Endpoint,
		AccessKeyID:     cfg.Credentials.S3AccessKeyID,
		SecretAccessKey: cfg.Credentials.S3SecretAccessKey,
	}); err != nil {
		log.Warn().Err(err).Msg("s3 provider unavailable, s3:// URIs will fail")
	} else if err := reg.Register("s3", s3p); err != nil {
		return nil, fmt.Errorf("filestore: %w", err)
	}

	if gcsp, err := NewGCSProvider(ctx, GCSOptions{
		CredentialsFile: cfg.Credentials.GCSCredentialsFile,
		ProjectID:       cfg.Credentials.GCSProjectID,
	}); err != nil {
		log.Warn().Err(err).Msg("gcs provider unavailable, gs:// URIs will fail")
	} else if err := reg.Register("gs", gcsp); err != nil {
		return nil, fmt.Errorf("filestore: %w", err)
	}

	if cfg.Credentials.AzureAccountName != "" {
		if azp, err := NewAzureBlobProvider(AzureOptions{
			AccountName: cfg.Credentials.AzureAccountName,
			AccountKey:  cfg.Credentials.AzureAccountKey,
		}); err != nil {
			log.Warn().Err(err).Msg("azure provider unavailable, az:// URIs will fail")
		} else if err := reg.Register("az", azp); err != nil {
			return nil, fmt.Errorf("filestore: %w", err)
		}
	}

	return reg, nil
}
