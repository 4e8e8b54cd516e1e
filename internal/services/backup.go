package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/gridworm/gridworm/internal/common"
	"github.com/gridworm/gridworm/internal/config"
	"github.com/gridworm/gridworm/internal/logging"
	"github.com/gridworm/gridworm/internal/models"
)

// PresignExpiry is how long a PresignDownload URL stays valid.
const PresignExpiry = 15 * time.Minute

// ErrBackupDisabled is returned when no bucket is configured.
var ErrBackupDisabled = errors.New("backup bucket is not configured")

type Snapshotter interface {
	ExportDatabase(ctx context.Context) (*models.Snapshot, error)
	ImportDatabase(ctx context.Context, snap *models.Snapshot) error
}

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// SDK constructors, replaced in tests.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig
	newS3Clients         = func(cfg aws.Config, optFns ...func(*s3.Options)) (objectAPI, presignAPI) {
		c := s3.NewFromConfig(cfg, optFns...)
		return c, s3.NewPresignClient(c)
	}
)

// BackupService copies whole-database snapshots to an S3-compatible bucket
// and restores them.
type BackupService struct {
	store Snapshotter
	cfg   config.Backup
	log   logging.Logger
	now   func() time.Time

	once    sync.Once
	objects objectAPI
	presign presignAPI
	initErr error
}

func NewBackupService(store Snapshotter, cfg config.Backup, log logging.Logger) *BackupService {
	if log == nil {
		log = logging.Nop()
	}
	return &BackupService{store: store, cfg: cfg, log: log, now: time.Now}
}

func (s *BackupService) clients(ctx context.Context) (objectAPI, presignAPI, error) {
	if !s.cfg.Enabled() {
		return nil, nil, ErrBackupDisabled
	}
	s.once.Do(func() {
		opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(s.cfg.Region)}
		if s.cfg.AccessKey != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(s.cfg.AccessKey, s.cfg.SecretKey, "")))
		}
		cfg, err := loadDefaultAWSConfig(ctx, opts...)
		if err != nil {
			s.initErr = fmt.Errorf("load aws config: %w", err)
			return
		}
		s.objects, s.presign = newS3Clients(cfg, func(o *s3.Options) {
			if s.cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(s.cfg.Endpoint)
				o.UsePathStyle = true
			}
		})
	})
	return s.objects, s.presign, s.initErr
}

// BackupKey returns the object key for a backup taken at t.
func BackupKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("backups/%04d/%02d/%02d/%s.json", t.Year(), t.Month(), t.Day(), uuid.NewString())
}

// Backup uploads the current snapshot and returns its object key.
func (s *BackupService) Backup(ctx context.Context) (string, error) {
	objects, _, err := s.clients(ctx)
	if err != nil {
		return "", fmt.Errorf("backup: %w", err)
	}

	snap, err := s.store.ExportDatabase(ctx)
	if err != nil {
		return "", fmt.Errorf("backup: %w", err)
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("backup: encode snapshot: %w", err)
	}

	key := BackupKey(s.now())
	_, err = objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("backup: upload %s: %w", key, err)
	}

	s.log.Info(ctx, "backup uploaded", "bucket", s.cfg.Bucket, "key", key, "bytes", len(body))
	return key, nil
}

// Restore downloads the snapshot stored under key and imports it, replacing
// the whole database.
func (s *BackupService) Restore(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("%w: restore: empty key", common.ErrValidation)
	}
	objects, _, err := s.clients(ctx)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	out, err := objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("restore: download %s: %w", key, err)
	}
	defer out.Body.Close()

	var snap models.Snapshot
	if err := json.NewDecoder(out.Body).Decode(&snap); err != nil {
		return fmt.Errorf("%w: restore: decode snapshot: %v", common.ErrValidation, err)
	}
	if err := s.store.ImportDatabase(ctx, &snap); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	s.log.Info(ctx, "backup restored", "key", key)
	return nil
}

// PresignDownload returns a GET URL for key valid for PresignExpiry.
func (s *BackupService) PresignDownload(ctx context.Context, key string) (string, error) {
	_, presign, err := s.clients(ctx)
	if err != nil {
		return "", fmt.Errorf("presign: %w", err)
	}

	req, err := presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(PresignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign: %w", err)
	}
	return req.URL, nil
}
