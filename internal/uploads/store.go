package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/clinicbook/clinicbook/pkg/logging"
)

// ErrUnsupportedType is returned for uploads outside the image allowlist.
var ErrUnsupportedType = errors.New("uploads: unsupported content type")

// ErrTooLarge is returned when an upload exceeds the size cap.
var ErrTooLarge = errors.New("uploads: file too large")

// maxImageBytes caps profile image uploads at 5 MiB.
const maxImageBytes = 5 << 20

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Store uploads profile images to S3 and returns durable public URLs.
type Store struct {
	bucket   string
	baseURL  string
	s3Client S3API
	logger   *logging.Logger
}

// NewStore creates an upload Store. If bucket is empty, uploads are disabled.
func NewStore(s3Client S3API, bucket, baseURL string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		bucket:   bucket,
		baseURL:  strings.TrimRight(baseURL, "/"),
		s3Client: s3Client,
		logger:   logger,
	}
}

// Enabled returns true if uploads are configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// UploadImage stores a profile image under the owner's prefix and returns its
// public URL. The key embeds a fresh UUID so re-uploads never collide and old
// URLs stay valid.
func (s *Store) UploadImage(ctx context.Context, ownerKind string, ownerID uuid.UUID, contentType string, body io.Reader) (string, error) {
	if !s.Enabled() {
		return "", errors.New("uploads: not configured")
	}

	ext, ok := allowedImageTypes[strings.ToLower(contentType)]
	if !ok {
		return "", ErrUnsupportedType
	}

	data, err := io.ReadAll(io.LimitReader(body, maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("uploads: read body: %w", err)
	}
	if len(data) > maxImageBytes {
		return "", ErrTooLarge
	}

	now := time.Now().UTC()
	key := path.Join("images", ownerKind,
		fmt.Sprintf("%d/%02d", now.Year(), now.Month()),
		ownerID.String(), uuid.New().String()+ext)

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("uploads: s3 put %s: %w", key, err)
	}

	url := s.publicURL(key)
	s.logger.Info("image uploaded",
		"owner_kind", ownerKind,
		"owner_id", ownerID,
		"s3_key", key,
		"bytes", len(data),
	)
	return url, nil
}

func (s *Store) publicURL(key string) string {
	if s.baseURL != "" {
		return s.baseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
}
