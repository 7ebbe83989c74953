package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"time"

	"mug-studio/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const (
	exportPrefix  = "exports"
	sessionPrefix = "sessions"
)

// s3Store keeps the full export under exports/<id>.json and a payload-free
// summary under sessions/<session>/<id>.json for listing.
type s3Store struct {
	s3Client *s3.Client
	bucket   string
}

// NewStore creates a new S3-based store.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}
}

// validID rejects ids that are not a single path element.
func validID(id string) error {
	if id == "" || id == "." || id == ".." || path.Base(id) != id {
		return fmt.Errorf("invalid id %q: must be a single path element", id)
	}
	return nil
}

func exportKey(id string) string {
	return path.Join(exportPrefix, id+".json")
}

func summaryKey(sessionID, id string) string {
	return path.Join(sessionPrefix, sessionID, id+".json")
}

func (s *s3Store) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return err
}

func (s *s3Store) get(ctx context.Context, key string, v any) error {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return core.ErrExportNotFound
		}
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *s3Store) Create(ctx context.Context, export *core.Export) (string, error) {
	if err := validID(export.SessionID); err != nil {
		return "", err
	}
	id := ulid.Make().String()
	export.ID = id
	if export.CreatedAt.IsZero() {
		export.CreatedAt = time.Now()
	}

	if err := s.put(ctx, exportKey(id), export); err != nil {
		return "", fmt.Errorf("failed to upload export: %v", err)
	}
	if err := s.put(ctx, summaryKey(export.SessionID, id), export.Summary()); err != nil {
		return "", fmt.Errorf("failed to upload export summary: %v", err)
	}
	logrus.WithFields(logrus.Fields{"export_id": id, "session_id": export.SessionID}).Info("Export created successfully")
	return id, nil
}

func (s *s3Store) FindID(ctx context.Context, id string) (*core.Export, error) {
	if err := validID(id); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrExportNotFound, err)
	}
	var export core.Export
	if err := s.get(ctx, exportKey(id), &export); err != nil {
		if errors.Is(err, core.ErrExportNotFound) {
			return nil, fmt.Errorf("%w: %s", core.ErrExportNotFound, id)
		}
		return nil, fmt.Errorf("failed to get export with id %s: %v", id, err)
	}
	return &export, nil
}

func (s *s3Store) List(ctx context.Context, sessionID string) ([]*core.Export, error) {
	if err := validID(sessionID); err != nil {
		return nil, err
	}
	output, err := s.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(path.Join(sessionPrefix, sessionID) + "/"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list exports for session %s: %v", sessionID, err)
	}

	exports := make([]*core.Export, 0, len(output.Contents))
	for _, object := range output.Contents {
		var summary core.Export
		if err := s.get(ctx, aws.ToString(object.Key), &summary); err != nil {
			logrus.WithError(err).Warnf("Failed to read export summary %s, skipping", aws.ToString(object.Key))
			continue
		}
		exports = append(exports, &summary)
	}
	return exports, nil
}

func (s *s3Store) Delete(ctx context.Context, id string) error {
	export, err := s.FindID(ctx, id)
	if err != nil {
		return err
	}
	for _, key := range []string{summaryKey(export.SessionID, id), exportKey(id)} {
		_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("failed to delete export %s: %v", id, err)
		}
	}
	return nil
}
