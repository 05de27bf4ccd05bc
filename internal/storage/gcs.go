package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/option"

	logx "releasebot/pkg/logx"
)

const defaultGCSObject = "subscribers.txt"

// gcsStore keeps the subscriber set in one Cloud Storage object. Object
// writes are atomic: readers see either the previous or the new generation.
type gcsStore struct {
	client *storage.Client
	bucket string
	object string
	log    logx.Logger
}

func openGCS(ctx context.Context, cfg Config, log logx.Logger) (SubscriberStore, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	object := strings.TrimSpace(cfg.Object)
	if object == "" {
		object = defaultGCSObject
	}
	var opts []option.ClientOption
	if c := strings.TrimSpace(cfg.Credentials); c != "" {
		opts = append(opts, option.WithCredentialsFile(c))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &gcsStore{client: client, bucket: bucket, object: object, log: log}, nil
}

func (s *gcsStore) retryOpts(ctx context.Context, op string) []retry.Option {
	return []retry.Option{
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30 * time.Second),
		retry.MaxJitter(2 * time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.log.Info("retrying gcs operation", logx.String("op", op), logx.Uint64("attempt", uint64(n)), logx.Err(err))
		}),
	}
}

func (s *gcsStore) Load(ctx context.Context) ([]int64, error) {
	var data []byte
	missing := false
	err := retry.Do(func() error {
		r, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
		if errors.Is(err, storage.ErrObjectNotExist) {
			missing = true
			return nil
		}
		if err != nil {
			return err
		}
		defer r.Close()
		data, err = io.ReadAll(r)
		return err
	}, s.retryOpts(ctx, "load")...)
	if err != nil {
		return nil, fmt.Errorf("%w: gs://%s/%s: %v", ErrUnavailable, s.bucket, s.object, err)
	}
	if missing {
		s.log.Info("subscriber object not found; starting empty", logx.String("bucket", s.bucket), logx.String("object", s.object))
		return nil, nil
	}
	ids, err := decodeIDs(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gs://%s/%s: %w", s.bucket, s.object, err)
	}
	return ids, nil
}

func (s *gcsStore) Save(ctx context.Context, ids []int64) error {
	data := encodeIDs(ids)
	err := retry.Do(func() error {
		w := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
		w.ContentType = "text/plain"
		if _, err := w.Write(data); err != nil {
			_ = w.Close()
			return fmt.Errorf("write: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("close writer: %w", err)
		}
		return nil
	}, s.retryOpts(ctx, "save")...)
	if err != nil {
		return fmt.Errorf("%w: gs://%s/%s: %v", ErrUnavailable, s.bucket, s.object, err)
	}
	return nil
}

func (s *gcsStore) Close() error { return s.client.Close() }
