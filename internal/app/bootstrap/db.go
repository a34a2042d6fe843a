// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/stratablog/internal/app/system/indexes"
	"github.com/dalemusser/stratablog/internal/app/system/mailer"
	"github.com/dalemusser/stratablog/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ConnectDB opens the MongoDB pool, the featured image store and the reply
// mailer. Nothing is left open when it fails.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	client, err := connectMongo(ctx, appCfg, logger)
	if err != nil {
		return DBDeps{}, err
	}

	files, err := newFileStorage(ctx, appCfg, logger)
	if err != nil {
		if derr := client.Disconnect(ctx); derr != nil {
			logger.Warn("disconnect after storage failure", zap.Error(derr))
		}
		return DBDeps{}, err
	}

	return DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
		FileStorage:   files,
		Mailer:        newMailer(appCfg, logger),
	}, nil
}

func connectMongo(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (*mongo.Client, error) {
	pool := wafflemongo.DefaultPoolConfig()
	if n := appCfg.MongoMaxPoolSize; n > 0 {
		pool.MaxPoolSize = n
	}
	if n := appCfg.MongoMinPoolSize; n > 0 {
		pool.MinPoolSize = n
	}

	client, err := wafflemongo.ConnectWithPool(ctx, appCfg.MongoURI, appCfg.MongoDatabase, pool)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	logger.Info("mongo connected",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("pool_min", pool.MinPoolSize),
		zap.Uint64("pool_max", pool.MaxPoolSize))
	return client, nil
}

func newMailer(appCfg AppConfig, logger *zap.Logger) *mailer.Mailer {
	if !appCfg.MailEnabled {
		logger.Info("reply notification mail disabled")
	} else {
		logger.Info("reply notification mail enabled",
			zap.String("smtp", fmt.Sprintf("%s:%d", appCfg.MailSMTPHost, appCfg.MailSMTPPort)),
			zap.Bool("ssl", appCfg.MailUseSSL))
	}
	return mailer.New(mailer.Config{
		Enabled:  appCfg.MailEnabled,
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		User:     appCfg.MailSMTPUser,
		Pass:     appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
		FromName: appCfg.MailFromName,
		UseSSL:   appCfg.MailUseSSL,
		Timeout:  appCfg.MailTimeout,
	}, logger)
}

// newFileStorage returns the featured image store for storage_type.
func newFileStorage(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (storage.Store, error) {
	if appCfg.StorageType == "s3" {
		s3, err := storage.NewS3(ctx, storage.S3Config{
			Region:                   appCfg.StorageS3Region,
			Bucket:                   appCfg.StorageS3Bucket,
			Prefix:                   appCfg.StorageS3Prefix,
			CloudFrontURL:            appCfg.StorageCFURL,
			CloudFrontKeyPairID:      appCfg.StorageCFKeyPairID,
			CloudFrontPrivateKeyPath: appCfg.StorageCFKeyPath,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 image storage: %w", err)
		}
		logger.Info("images stored in s3",
			zap.String("bucket", appCfg.StorageS3Bucket),
			zap.String("prefix", appCfg.StorageS3Prefix),
			zap.Bool("cloudfront", appCfg.StorageCFURL != ""))
		return s3, nil
	}
	if appCfg.StorageType != "" && appCfg.StorageType != "local" {
		return nil, fmt.Errorf("unknown storage type: %s", appCfg.StorageType)
	}

	local, err := storage.NewLocal(storage.LocalConfig{
		BasePath: appCfg.StorageLocalPath,
		BaseURL:  appCfg.StorageLocalURL,
	})
	if err != nil {
		return nil, fmt.Errorf("local image storage: %w", err)
	}
	logger.Info("images stored on disk",
		zap.String("path", appCfg.StorageLocalPath),
		zap.String("url", appCfg.StorageLocalURL))
	return local, nil
}

// EnsureSchema attaches collection validators, then builds indexes.
// Validators run first so indexes land on collections that already exist.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase

	if err := validators.EnsureAll(ctx, db, logger); err != nil {
		return fmt.Errorf("collection validators: %w", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		return fmt.Errorf("indexes: %w", err)
	}
	logger.Info("schema ready", zap.String("database", db.Name()))
	return nil
}
