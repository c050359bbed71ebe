package s3client

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type bucketMock struct {
	mu          sync.Mutex
	objects     map[string][]byte
	contentType map[string]string
}

func (b *bucketMock) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		b.objects[r.URL.Path] = body
		b.contentType[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := b.objects[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
			return
		}
		_, _ = w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T) (*Client, *bucketMock) {
	t.Helper()
	bucket := &bucketMock{objects: map[string][]byte{}, contentType: map[string]string{}}
	srv := httptest.NewServer(bucket)
	t.Cleanup(srv.Close)

	acquired := 0
	client, err := newClient(EnvironmentConfig{BucketName: "notes", Region: "us-east-1"}, func(*Client) (*session.Session, error) {
		acquired++
		return session.NewSession(&aws.Config{
			Region:           aws.String("us-east-1"),
			Endpoint:         aws.String(srv.URL),
			S3ForcePathStyle: aws.Bool(true),
			Credentials:      credentials.NewStaticCredentials("id", "secret", ""),
			MaxRetries:       aws.Int(0),
		})
	})
	require.NoError(t, err)
	require.Equal(t, 1, acquired)
	t.Cleanup(client.Close)
	return client, bucket
}

func TestUploadDownload(t *testing.T) {
	client, bucket := newTestClient(t)

	_, err := client.Upload([]byte(`{"medications": []}`), "results/job-1/note-1.json", "application/json")
	require.NoError(t, err)
	require.Equal(t, []byte(`{"medications": []}`), bucket.objects["/notes/results/job-1/note-1.json"])
	require.Equal(t, "application/json", bucket.contentType["/notes/results/job-1/note-1.json"])

	data, err := client.Download("results/job-1/note-1.json")
	require.NoError(t, err)
	require.Equal(t, `{"medications": []}`, string(data))
}

func TestDownloadMissingKey(t *testing.T) {
	client, _ := newTestClient(t)
	_, err := client.Download("notes/absent.txt")
	require.Error(t, err)
}
