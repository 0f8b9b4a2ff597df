package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/personal-audit/internal/config"
)

// fakeS3 keeps objects in memory keyed by bucket/key.
type fakeS3 struct {
	objects      map[string][]byte
	contentTypes map[string]string
	putErr       error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	k := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[k] = data
	f.contentTypes[k] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in      string
		want    Location
		wantErr bool
	}{
		{"report.csv", Location{Path: "report.csv"}, false},
		{"/tmp/out.xlsx", Location{Path: "/tmp/out.xlsx"}, false},
		{"s3://bucket/exports/may.csv", Location{Bucket: "bucket", Key: "exports/may.csv"}, false},
		{"S3://bucket/key", Location{Bucket: "bucket", Key: "key"}, false},
		{"s3://bucket", Location{}, true},
		{"s3:///key", Location{}, true},
		{"", Location{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLocation(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "s3://b/k/x.csv", Location{Bucket: "b", Key: "k/x.csv"}.String())
	assert.Equal(t, "in.csv", Location{Path: "in.csv"}.String())
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := New(config.StorageConfig{})

	loc := Location{Path: filepath.Join(dir, "out.xlsx")}

	ok, err := store.Exists(ctx, loc)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Read(ctx, loc)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, store.Write(ctx, loc, []byte("first"), ""))
	require.NoError(t, store.Write(ctx, loc, []byte("second"), ""))

	ok, err = store.Exists(ctx, loc)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := store.Read(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestLocalStoreDirectoryIsNotAFile(t *testing.T) {
	ok, err := New(config.StorageConfig{}).Exists(context.Background(), Location{Path: t.TempDir()})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalWriteMissingDirectory(t *testing.T) {
	loc := Location{Path: filepath.Join(t.TempDir(), "nope", "out.xlsx")}
	err := New(config.StorageConfig{}).Write(context.Background(), loc, []byte("x"), "")
	assert.Error(t, err)
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.objects["exports/in.csv"] = []byte("recipient_status\n")

	store := NewWithAWS(config.StorageConfig{}, NewAWSStorageWithClient(fake, "us-east-1"))

	in := Location{Bucket: "exports", Key: "in.csv"}
	ok, err := store.Exists(ctx, in)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := store.Read(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "recipient_status\n", string(data))

	out := Location{Bucket: "exports", Key: "audited/out.xlsx"}
	require.NoError(t, store.Write(ctx, out, []byte("xlsx"), "application/octet-stream"))
	assert.Equal(t, "xlsx", string(fake.objects["exports/audited/out.xlsx"]))
	assert.Equal(t, "application/octet-stream", fake.contentTypes["exports/audited/out.xlsx"])

	missing := Location{Bucket: "exports", Key: "gone.csv"}
	ok, err = store.Exists(ctx, missing)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Read(ctx, missing)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestS3PutError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("access denied")
	store := NewWithAWS(config.StorageConfig{}, NewAWSStorageWithClient(fake, "us-east-1"))

	err := store.Write(context.Background(), Location{Bucket: "b", Key: "k"}, []byte("x"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}
