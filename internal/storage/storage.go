package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ignite/personal-audit/internal/config"
)

const s3Scheme = "s3://"

// ErrNotFound is returned when a location does not exist.
var ErrNotFound = errors.New("location not found")

// Location is either a local path or an object in S3.
type Location struct {
	Path   string
	Bucket string
	Key    string
}

// ParseLocation accepts a filesystem path or s3://bucket/key.
func ParseLocation(raw string) (Location, error) {
	if raw == "" {
		return Location{}, errors.New("empty location")
	}
	if !strings.HasPrefix(strings.ToLower(raw), s3Scheme) {
		return Location{Path: raw}, nil
	}
	bucket, key, _ := strings.Cut(raw[len(s3Scheme):], "/")
	if bucket == "" || key == "" {
		return Location{}, fmt.Errorf("invalid S3 location %q: want s3://bucket/key", raw)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// IsS3 reports whether the location names an S3 object.
func (l Location) IsS3() bool { return l.Bucket != "" }

func (l Location) String() string {
	if l.IsS3() {
		return s3Scheme + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// Store reads and writes whole files at local or S3 locations. The S3
// client is created on first use so local-only runs never load AWS config.
type Store struct {
	config config.StorageConfig
	aws    *AWSStorage
}

// New creates a store.
func New(cfg config.StorageConfig) *Store {
	return &Store{config: cfg}
}

// NewWithAWS creates a store around an existing S3 backend.
func NewWithAWS(cfg config.StorageConfig, aws *AWSStorage) *Store {
	return &Store{config: cfg, aws: aws}
}

func (s *Store) remote(ctx context.Context) (*AWSStorage, error) {
	if s.aws != nil {
		return s.aws, nil
	}
	aws, err := NewAWSStorage(ctx, s.config)
	if err != nil {
		return nil, err
	}
	s.aws = aws
	return aws, nil
}

// Exists reports whether the location is present. Local directories do not
// count.
func (s *Store) Exists(ctx context.Context, loc Location) (bool, error) {
	if loc.IsS3() {
		aws, err := s.remote(ctx)
		if err != nil {
			return false, err
		}
		return aws.ObjectExists(ctx, loc.Bucket, loc.Key)
	}
	info, err := os.Stat(loc.Path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// Read loads the whole location into memory.
func (s *Store) Read(ctx context.Context, loc Location) ([]byte, error) {
	if loc.IsS3() {
		aws, err := s.remote(ctx)
		if err != nil {
			return nil, err
		}
		return aws.GetObject(ctx, loc.Bucket, loc.Key)
	}
	data, err := os.ReadFile(loc.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", loc.Path, ErrNotFound)
	}
	return data, err
}

// Write stores data at the location, replacing what was there. Local files
// are written to a temporary sibling and renamed into place, so a failed
// write never leaves a partial file.
func (s *Store) Write(ctx context.Context, loc Location, data []byte, contentType string) error {
	if loc.IsS3() {
		aws, err := s.remote(ctx)
		if err != nil {
			return err
		}
		return aws.PutObject(ctx, loc.Bucket, loc.Key, data, contentType)
	}

	dir := filepath.Dir(loc.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(loc.Path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", loc.Path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", loc.Path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("chmod %s: %w", loc.Path, err)
	}
	if err := os.Rename(tmpName, loc.Path); err != nil {
		return fmt.Errorf("rename into %s: %w", loc.Path, err)
	}
	return nil
}
