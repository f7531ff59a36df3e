package artifacts

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/govpipe/config"
	"github.com/teranos/govpipe/errors"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "incident/run-1/stats.json", Key("incident", "run-1", StatsFile))
}

func TestEncode_Stable(t *testing.T) {
	v := map[string]any{"b": 2, "a": []int{1}}
	first, err := Encode(v)
	require.NoError(t, err)
	second, err := Encode(v)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "{\n  \"a\": [\n    1\n  ],\n  \"b\": 2\n}\n", string(first))
}

func TestFileSink_Put(t *testing.T) {
	root := t.TempDir()
	sink := NewFileSink(root)

	require.NoError(t, PutJSON(context.Background(), sink, Key("complaint", "r1", AuditFile), map[string]int{"imported": 3}))
	require.NoError(t, PutJSON(context.Background(), sink, Key("complaint", "r1", AuditFile), map[string]int{"imported": 4}))

	p := filepath.Join(root, "complaint", "r1", "audit.json")
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"imported\": 4\n}\n", string(data))
	assert.Equal(t, p, sink.Location("complaint/r1/audit.json"))

	entries, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileSink_RejectsEscapingKeys(t *testing.T) {
	sink := NewFileSink(t.TempDir())
	for _, key := range []string{"", "/etc/passwd", "../x.json", "a//b.json"} {
		assert.Error(t, sink.Put(context.Background(), key, []byte("{}")), key)
	}
}

func TestPutJSON_WriteFailureIsMarked(t *testing.T) {
	root := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(root, []byte("file, not dir"), 0o644))

	err := PutJSON(context.Background(), NewFileSink(root), "incident/r/stats.json", map[string]int{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWrite))
}

type fakeS3 struct {
	puts map[string]string
	err  error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.puts[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink_Put(t *testing.T) {
	fake := &fakeS3{puts: map[string]string{}}
	sink := NewS3SinkWithClient(fake, "gov-artifacts", "/pipeline/")

	require.NoError(t, PutJSON(context.Background(), sink, Key("collision", "r9", ProbeFile), []int{}))

	assert.Equal(t, map[string]string{"gov-artifacts/pipeline/collision/r9/probe.json": "[]\n"}, fake.puts)
	assert.Equal(t, "s3://gov-artifacts/pipeline/collision/r9/probe.json", sink.Location("collision/r9/probe.json"))

	fake.err = errors.New("access denied")
	err := PutJSON(context.Background(), sink, "collision/r9/stats.json", []int{})
	assert.True(t, errors.Is(err, ErrWrite))
}

func TestNewSinkFromConfig(t *testing.T) {
	sink, err := NewSinkFromConfig(context.Background(), config.ArtifactsConfig{Backend: "fs", Dir: "out"})
	require.NoError(t, err)
	assert.Equal(t, "out", sink.(*FileSink).Root())

	_, err = NewSinkFromConfig(context.Background(), config.ArtifactsConfig{Backend: "s3"})
	assert.Error(t, err)

	_, err = NewSinkFromConfig(context.Background(), config.ArtifactsConfig{Backend: "ftp"})
	assert.Error(t, err)
}
