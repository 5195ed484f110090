package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/config"
)

// NewClient creates a Firestore client. An empty credentials file falls back to
// Application Default Credentials.
func NewClient(ctx context.Context, cfg config.FirestoreConfig, logger *zap.Logger) (*firestore.Client, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore project id is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	if logger != nil {
		logger.Info("Firestore connected", zap.String("project", cfg.ProjectID))
	}
	return client, nil
}
