// Package storage is the S3 layer for both case buckets: JSON document
// reads/writes, the completion check, hierarchical prefix listing and
// bounded bulk deletion. Everything that touches the wire goes through the
// shared retry policy.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	json "github.com/goccy/go-json"

	"github.com/supportops/case-insights/aws"
	"github.com/supportops/case-insights/casekey"
	"github.com/supportops/case-insights/retry"
)

// maxDeleteBatch is the S3 DeleteObjects limit per call.
const maxDeleteBatch = 1000

// Store wraps an S3 client with the pipeline's access patterns.
type Store struct {
	client aws.S3Client
	retry  retry.Policy
	log    *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default.
func New(client aws.S3Client, policy retry.Policy, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{client: client, retry: policy, log: log}
}

// ReadJSON fetches an object and decodes it into v.
func (s *Store) ReadJSON(ctx context.Context, bucket, key string, v any) error {
	out, err := retry.DoValue(ctx, s.retry, func(ctx context.Context) (*s3.GetObjectOutput, error) {
		return s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: awssdk.String(bucket),
			Key:    awssdk.String(key),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to read s3://%s/%s: %w", bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	if err := json.NewDecoder(out.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// WriteJSON encodes v and stores it under the given key.
func (s *Store) WriteJSON(ctx context.Context, bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode s3://%s/%s: %w", bucket, key, err)
	}

	err = s.retry.Do(ctx, func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      awssdk.String(bucket),
			Key:         awssdk.String(key),
			Body:        bytes.NewReader(data),
			ContentType: awssdk.String("application/json"),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// Exists heads the object and reports presence. Not-found is a normal
// negative outcome, never retried and never an error; any other failure
// propagates so ambiguous state is not silently treated as either answer.
func (s *Store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	found, err := retry.DoValue(ctx, s.retry, func(ctx context.Context) (bool, error) {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: awssdk.String(bucket),
			Key:    awssdk.String(key),
		})
		if err != nil {
			if isNotFound(err) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to check s3://%s/%s: %w", bucket, key, err)
	}
	return found, nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}

// ListAccountPrefixes returns every account folder in the bucket, using a
// delimiter listing so case objects are not enumerated.
func (s *Store) ListAccountPrefixes(ctx context.Context, bucket string) ([]string, error) {
	return s.listCommonPrefixes(ctx, bucket, casekey.AccountScanPrefix)
}

// ListCasePrefixes returns the case folders under one account folder.
func (s *Store) ListCasePrefixes(ctx context.Context, bucket, accountPrefix string) ([]string, error) {
	return s.listCommonPrefixes(ctx, bucket, accountPrefix)
}

func (s *Store) listCommonPrefixes(ctx context.Context, bucket, prefix string) ([]string, error) {
	var prefixes []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    awssdk.String(bucket),
		Prefix:    awssdk.String(prefix),
		Delimiter: awssdk.String("/"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, cp := range page.CommonPrefixes {
			prefixes = append(prefixes, awssdk.ToString(cp.Prefix))
		}
	}
	return prefixes, nil
}

// ListObjects returns every object key under a prefix.
func (s *Store) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: awssdk.String(bucket),
		Prefix: awssdk.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, awssdk.ToString(obj.Key))
		}
	}
	return keys, nil
}

// ExistingCaseIDs lists an account folder in the processed bucket and
// returns the case IDs that already carry a terminal marker. A listing
// failure yields an empty set instead of an error: callers then treat every
// case as new, and the extra work is reconciled by the cleanup run rather
// than halting ingestion here.
func (s *Store) ExistingCaseIDs(ctx context.Context, bucket, accountPrefix string) map[string]struct{} {
	existing := make(map[string]struct{})

	keys, err := s.ListObjects(ctx, bucket, accountPrefix)
	if err != nil {
		s.log.Error("failed to list existing cases, treating all as new",
			"bucket", bucket, "prefix", accountPrefix, "error", err)
		return existing
	}

	for _, key := range keys {
		if id := casekey.CaseIDFromDataKey(key); id != "" {
			existing[id] = struct{}{}
		}
	}
	return existing
}

// DeleteObjects removes the given keys in batches of up to 1000 per call.
// Any object-level error fails the whole operation; S3 may still have
// deleted the other objects in the batch, which is acceptable because the
// caller retries the full case on the next run.
func (s *Store) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))

		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: awssdk.String(key)})
		}

		out, err := retry.DoValue(ctx, s.retry, func(ctx context.Context) (*s3.DeleteObjectsOutput, error) {
			return s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: awssdk.String(bucket),
				Delete: &types.Delete{
					Objects: ids,
					Quiet:   awssdk.Bool(true),
				},
			})
		})
		if err != nil {
			return fmt.Errorf("failed to delete %d objects from %s: %w", len(ids), bucket, err)
		}

		if len(out.Errors) > 0 {
			first := out.Errors[0]
			for _, e := range out.Errors {
				s.log.Error("failed to delete object",
					"bucket", bucket,
					"key", awssdk.ToString(e.Key),
					"code", awssdk.ToString(e.Code),
					"message", awssdk.ToString(e.Message))
			}
			return fmt.Errorf("%d objects failed to delete from %s (first: %s %s)",
				len(out.Errors), bucket, awssdk.ToString(first.Key), awssdk.ToString(first.Code))
		}
	}
	return nil
}
