package publish

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conceptual-Machines/magda-composer/internal/config"
)

type mockUploader struct {
	s3manageriface.UploaderAPI
	input *s3manager.UploadInput
	body  []byte
	err   error
}

func (m *mockUploader) UploadWithContext(_ aws.Context, input *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	m.input = input
	m.body, _ = io.ReadAll(input.Body)
	if m.err != nil {
		return nil, m.err
	}
	return &s3manager.UploadOutput{Location: "https://bucket.s3.amazonaws.com/" + aws.StringValue(input.Key)}, nil
}

func TestNewDisabledWithoutBucket(t *testing.T) {
	p, err := New(&config.Config{})
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	loc, err := p.Publish(context.Background(), "amber_tide.mid", []byte("MThd"))
	require.NoError(t, err)
	assert.Empty(t, loc)
}

func TestPublish(t *testing.T) {
	up := &mockUploader{}
	p := NewWithUploader(up, "scores", "/generations/")

	loc, err := p.Publish(context.Background(), "amber_tide.mid", []byte("MThd"))
	require.NoError(t, err)

	assert.Equal(t, "generations/amber_tide.mid", aws.StringValue(up.input.Key))
	assert.Equal(t, "scores", aws.StringValue(up.input.Bucket))
	assert.Equal(t, "audio/midi", aws.StringValue(up.input.ContentType))
	assert.Equal(t, []byte("MThd"), up.body)
	assert.Contains(t, loc, "generations/amber_tide.mid")
}

func TestPublishError(t *testing.T) {
	p := NewWithUploader(&mockUploader{err: errors.New("denied")}, "scores", "")
	_, err := p.Publish(context.Background(), "x_y.mid", nil)
	assert.Error(t, err)
}
