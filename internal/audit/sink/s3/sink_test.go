package s3

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediglot/internal/audit"
)

type fakeS3 struct {
	keys   []string
	bodies [][]byte
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.keys = append(f.keys, aws.ToString(in.Key))
	f.bodies = append(f.bodies, body)
	return &awss3.PutObjectOutput{}, nil
}

func TestSink_DeliverUploadsJSONLGz(t *testing.T) {
	fake := &fakeS3{}
	fixed := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	sink := &Sink{client: fake, bucket: "audit-archive", prefix: DefaultPrefix, now: func() time.Time { return fixed }}

	batch := []audit.Event{
		{Type: audit.TypeTranslation, Action: audit.ActionMedicalTranslation, Success: true, Timestamp: fixed, Details: "en-US to fr-FR"},
		{Type: audit.TypeError, Action: audit.ActionValidationFailed, Timestamp: fixed, Details: "Missing required fields"},
	}
	require.NoError(t, sink.Deliver(context.Background(), batch))
	require.Len(t, fake.bodies, 1)

	assert.Regexp(t, `^audit/2026/08/31/20260831T120000Z-[0-9a-f-]+\.jsonl\.gz$`, fake.keys[0])

	zr, err := gzip.NewReader(bytes.NewReader(fake.bodies[0]))
	require.NoError(t, err)
	defer zr.Close()

	var decoded []audit.Event
	scanner := bufio.NewScanner(zr)
	for scanner.Scan() {
		var e audit.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		decoded = append(decoded, e)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, decoded, 2)
	assert.Equal(t, audit.ActionMedicalTranslation, decoded[0].Action)
	assert.Equal(t, audit.ActionValidationFailed, decoded[1].Action)
}

func TestSink_DeliverPropagatesUploadError(t *testing.T) {
	fake := &fakeS3{err: errors.New("bucket gone")}
	sink := &Sink{client: fake, bucket: "audit-archive", prefix: DefaultPrefix, now: time.Now}

	err := sink.Deliver(context.Background(), []audit.Event{{Type: audit.TypeAccess, Action: "probe"}})
	assert.ErrorContains(t, err, "bucket gone")
}
