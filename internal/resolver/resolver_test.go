package resolver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Mieluoxxx/Lumina-API/internal/runner"
	"github.com/Mieluoxxx/Lumina-API/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestResolver 用假运行器和禁用的对象存储构造 Resolver
func newTestResolver(t *testing.T, handler http.HandlerFunc) *Resolver {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	storageClient, err := storage.NewClient(storage.Config{})
	require.NoError(t, err)

	return NewResolver(runner.NewClient(server.URL, 0), storageClient)
}

func TestParseEnvironment(t *testing.T) {
	env, err := ParseEnvironment("local")
	require.NoError(t, err)
	assert.Equal(t, EnvLocal, env)

	env, err = ParseEnvironment("remote")
	require.NoError(t, err)
	assert.Equal(t, EnvRemote, env)

	_, err = ParseEnvironment("cloud")
	assert.ErrorIs(t, err, ErrUnknownEnvironment)
}

func TestResolver_Resolve_Pending(t *testing.T) {
	res := newTestResolver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"task_status": "PENDING"})
	})

	outcome, err := res.Resolve(context.Background(), "task-1", EnvLocal, "")
	require.NoError(t, err, "pending is a status, not an error")
	assert.Equal(t, OutcomeNotReady, outcome.Kind)
	assert.NotEmpty(t, outcome.Body)
}

func TestResolver_Resolve_LocalImages(t *testing.T) {
	encoded := []string{
		base64.StdEncoding.EncodeToString([]byte("image-A")),
		base64.StdEncoding.EncodeToString([]byte("image-B")),
		base64.StdEncoding.EncodeToString([]byte("image-C")),
	}
	res := newTestResolver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"task_status": "SUCCESS",
			"image_list":  encoded,
		})
	})

	dir := t.TempDir()
	outcome, err := res.Resolve(context.Background(), "task-1", EnvLocal, dir)
	require.NoError(t, err)
	require.Equal(t, OutcomeSaved, outcome.Kind)
	assert.Equal(t, 3, outcome.Written)

	// 落盘顺序与运行器返回顺序一致
	for i, expected := range []string{"image-A", "image-B", "image-C"} {
		content, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("output_%d.png", i)))
		require.NoError(t, err)
		assert.Equal(t, expected, string(content))
	}
}

func TestResolver_Resolve_StatusPassthrough(t *testing.T) {
	res := newTestResolver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"task_status": "SUCCESS",
			"message":     "model downloaded",
		})
	})

	outcome, err := res.Resolve(context.Background(), "task-1", EnvRemote, "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeStatus, outcome.Kind)
	assert.Contains(t, string(outcome.Body), "model downloaded")
}

func TestResolver_Resolve_Artifact(t *testing.T) {
	res := newTestResolver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="weights.zip"`)
		w.Write([]byte("zip-payload"))
	})

	outcome, err := res.Resolve(context.Background(), "task-1", EnvRemote, "")
	require.NoError(t, err)
	require.Equal(t, OutcomeArtifact, outcome.Kind)
	defer outcome.Stream.Close()

	assert.Equal(t, "application/zip", outcome.ContentType)
	assert.Equal(t, "weights.zip", outcome.Filename)

	content, err := io.ReadAll(outcome.Stream)
	require.NoError(t, err)
	assert.Equal(t, "zip-payload", string(content))
}

func TestResolver_Resolve_RemoteWithoutStorage(t *testing.T) {
	encoded := []string{base64.StdEncoding.EncodeToString([]byte("img"))}
	res := newTestResolver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"task_status": "SUCCESS",
			"image_list":  encoded,
		})
	})

	_, err := res.Resolve(context.Background(), "task-1", EnvRemote, "")
	assert.ErrorIs(t, err, storage.ErrDisabled)
}

// recordingStore 记录上传顺序的假对象存储
type recordingStore struct {
	uploaded [][]byte
}

func (s *recordingStore) UploadImages(ctx context.Context, images [][]byte) ([]string, error) {
	s.uploaded = images
	urls := make([]string, 0, len(images))
	for i, image := range images {
		urls = append(urls, fmt.Sprintf("http://store/%d-%s.png", i, image))
	}
	return urls, nil
}

func TestResolver_Resolve_RemoteOrderPreserved(t *testing.T) {
	payloads := []string{"img-A", "img-B", "img-C"}
	encoded := make([]string, 0, len(payloads))
	for _, p := range payloads {
		encoded = append(encoded, base64.StdEncoding.EncodeToString([]byte(p)))
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"task_status": "SUCCESS",
			"image_list":  encoded,
		})
	}))
	t.Cleanup(server.Close)

	store := &recordingStore{}
	res := NewResolver(runner.NewClient(server.URL, 0), store)

	outcome, err := res.Resolve(context.Background(), "task-1", EnvRemote, "")
	require.NoError(t, err)
	require.Equal(t, OutcomeUploaded, outcome.Kind)

	// 上传顺序与运行器返回顺序一致
	require.Len(t, store.uploaded, 3)
	for i, payload := range payloads {
		assert.Equal(t, payload, string(store.uploaded[i]))
	}

	// URL 第 i 项对应输入第 i 项
	require.Len(t, outcome.URLs, 3)
	for i, payload := range payloads {
		assert.Equal(t, fmt.Sprintf("http://store/%d-%s.png", i, payload), outcome.URLs[i])
	}
}

func TestResolver_RouteImages_BadPayload(t *testing.T) {
	storageClient, err := storage.NewClient(storage.Config{})
	require.NoError(t, err)
	res := NewResolver(nil, storageClient)

	_, err = res.RouteImages(context.Background(), []string{"%%%not-base64%%%"}, EnvLocal, t.TempDir())
	assert.ErrorIs(t, err, ErrBadImagePayload)
}
