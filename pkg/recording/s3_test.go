package recording

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestUpload(t *testing.T) {
	fake := &fakeS3{}
	u, err := NewS3Uploader(fake, "calls", "recordings/", nil)
	require.NoError(t, err)
	u.now = func() time.Time { return time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC) }

	require.NoError(t, u.Upload(context.Background(), "s1", "b1", []byte("RIFFdata")))

	assert.Equal(t, "calls", aws.ToString(fake.input.Bucket))
	assert.Equal(t, "recordings/s1/20260501T123000Z-b1.wav", aws.ToString(fake.input.Key))
	assert.Equal(t, "audio/wav", aws.ToString(fake.input.ContentType))
	assert.Equal(t, []byte("RIFFdata"), fake.body)
}

func TestUploadError(t *testing.T) {
	fake := &fakeS3{err: errors.New("denied")}
	u, err := NewS3Uploader(fake, "calls", "", nil)
	require.NoError(t, err)

	err = u.Upload(context.Background(), "", "b1", []byte("x"))
	assert.ErrorContains(t, err, "denied")
	assert.Contains(t, aws.ToString(fake.input.Key), "unknown/")
}

func TestDisabled(t *testing.T) {
	_, err := NewS3Uploader(&fakeS3{}, "", "", nil)
	assert.ErrorIs(t, err, ErrNoBucket)

	u, err := NewFromEnv(context.Background(), "us-east-1", "", "", nil)
	assert.NoError(t, err)
	assert.Nil(t, u)
}
