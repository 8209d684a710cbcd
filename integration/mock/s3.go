// Package mock holds the in-memory S3 fake shared by the package tests and
// the end-to-end tests. It implements the pipeline's S3Client interface
// with real prefix/delimiter listing semantics and injectable failures.
package mock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/supportops/case-insights/aws"
)

// S3 is an in-memory bucket store keyed by "bucket/key".
type S3 struct {
	mu    sync.Mutex
	files map[string][]byte

	// FailListPrefixes makes ListObjectsV2 fail for any request whose
	// prefix starts with one of these strings.
	FailListPrefixes []string
	// FailHeadKeys makes HeadObject fail (not with NotFound) for these
	// "bucket/key" entries.
	FailHeadKeys map[string]bool
	// FailDeleteKeys makes DeleteObjects report an object-level error for
	// these "bucket/key" entries instead of deleting them.
	FailDeleteKeys map[string]bool

	// DeleteCalls counts DeleteObjects API calls, for dry-run assertions.
	DeleteCalls int
}

var _ aws.S3Client = (*S3)(nil)

// NewS3 creates an empty fake.
func NewS3() *S3 {
	return &S3{
		files:          make(map[string][]byte),
		FailHeadKeys:   make(map[string]bool),
		FailDeleteKeys: make(map[string]bool),
	}
}

func path(bucket, key string) string { return bucket + "/" + key }

// Put seeds an object.
func (m *S3) Put(bucket, key string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path(bucket, key)] = body
}

// Has reports whether an object exists.
func (m *S3) Has(bucket, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path(bucket, key)]
	return ok
}

// Keys returns all object keys in a bucket, sorted.
func (m *S3) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for p := range m.files {
		if b, k, ok := strings.Cut(p, "/"); ok && b == bucket {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (m *S3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.files[path(awssdk.ToString(params.Bucket), awssdk.ToString(params.Key))]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (m *S3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.Put(awssdk.ToString(params.Bucket), awssdk.ToString(params.Key), body)
	return &s3.PutObjectOutput{}, nil
}

func (m *S3) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := path(awssdk.ToString(params.Bucket), awssdk.ToString(params.Key))
	if m.FailHeadKeys[p] {
		return nil, fmt.Errorf("injected head failure for %s", p)
	}
	if _, ok := m.files[p]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *S3) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := awssdk.ToString(params.Bucket)
	prefix := awssdk.ToString(params.Prefix)
	delimiter := awssdk.ToString(params.Delimiter)

	for _, failPrefix := range m.FailListPrefixes {
		if strings.HasPrefix(prefix, failPrefix) {
			return nil, fmt.Errorf("injected list failure for %s/%s", bucket, prefix)
		}
	}

	var keys []string
	for p := range m.files {
		if b, k, ok := strings.Cut(p, "/"); ok && b == bucket && strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: awssdk.Bool(false)}
	seenPrefixes := make(map[string]bool)
	for _, k := range keys {
		if delimiter != "" {
			rest := strings.TrimPrefix(k, prefix)
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				cp := prefix + rest[:idx+len(delimiter)]
				if !seenPrefixes[cp] {
					seenPrefixes[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: awssdk.String(cp)})
				}
				continue
			}
		}
		out.Contents = append(out.Contents, types.Object{Key: awssdk.String(k)})
	}
	return out, nil
}

func (m *S3) DeleteObjects(_ context.Context, params *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls++
	bucket := awssdk.ToString(params.Bucket)

	out := &s3.DeleteObjectsOutput{}
	for _, obj := range params.Delete.Objects {
		key := awssdk.ToString(obj.Key)
		if m.FailDeleteKeys[path(bucket, key)] {
			out.Errors = append(out.Errors, types.Error{
				Key:     awssdk.String(key),
				Code:    awssdk.String("AccessDenied"),
				Message: awssdk.String("injected delete failure"),
			})
			continue
		}
		delete(m.files, path(bucket, key))
	}
	return out, nil
}
