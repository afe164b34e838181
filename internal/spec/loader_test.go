package spec

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalSpec = `{
	"openapi": "3.0.0",
	"info": {"title": "Mini", "version": "1.0.0"},
	"paths": {"/ping": {"get": {"responses": {}}}}
}`

func TestLoadOpenAPI_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec.json")
	require.NoError(t, os.WriteFile(path, []byte(minimalSpec), 0o644))

	l := NewLoader(0, nil)
	doc, err := l.LoadOpenAPI(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Mini", doc.Info.Title)
	assert.Len(t, doc.Paths, 1)
}

func TestLoadOpenAPI_FromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(minimalSpec))
	}))
	defer srv.Close()

	l := NewLoader(0, nil)
	doc, err := l.LoadOpenAPI(context.Background(), srv.URL+"/spec.json")
	require.NoError(t, err)
	assert.Equal(t, "Mini", doc.Info.Title)
}

func TestLoadOpenAPI_URLNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	l := NewLoader(0, nil)
	_, err := l.LoadOpenAPI(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestLoadOpenAPI_EmptyPathsFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"openapi":"3.0.0","paths":{}}`), 0o644))

	l := NewLoader(0, nil)
	_, err := l.LoadOpenAPI(context.Background(), path)
	assert.Error(t, err)
}

func TestLoadOpenAPI_MissingFile(t *testing.T) {
	l := NewLoader(0, nil)
	_, err := l.LoadOpenAPI(context.Background(), "/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestLoadOpenAPI_YAMLFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
openapi: 3.0.0
info:
  title: FromYAML
paths:
  /ping:
    get:
      responses: {}
`), 0o644))

	l := NewLoader(0, nil)
	doc, err := l.LoadOpenAPI(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "FromYAML", doc.Info.Title)
}

func TestLoadPostman_WithEnvironment(t *testing.T) {
	dir := t.TempDir()
	colPath := filepath.Join(dir, "collection.json")
	envPath := filepath.Join(dir, "env.json")

	require.NoError(t, os.WriteFile(colPath, []byte(`{
		"info": {"name": "Col"},
		"item": [{"name": "Ping", "request": {"method": "GET", "url": "{{baseUrl}}/ping"}}]
	}`), 0o644))
	require.NoError(t, os.WriteFile(envPath, []byte(`{
		"name": "staging",
		"values": [{"key": "baseUrl", "value": "https://staging.test"}]
	}`), 0o644))

	l := NewLoader(0, nil)
	col, env, err := l.LoadPostman(context.Background(), colPath, envPath)
	require.NoError(t, err)
	assert.Equal(t, "Col", col.Info.Name)
	require.NotNil(t, env)
	assert.Equal(t, "staging", env.Name)
}

func TestLoadPostman_NoEnvironment(t *testing.T) {
	colPath := filepath.Join(t.TempDir(), "collection.json")
	require.NoError(t, os.WriteFile(colPath, []byte(`{"info": {"name": "Col"}, "item": []}`), 0o644))

	l := NewLoader(0, nil)
	col, env, err := l.LoadPostman(context.Background(), colPath, "")
	require.NoError(t, err)
	assert.Equal(t, "Col", col.Info.Name)
	assert.Nil(t, env)
}

func TestPostmanURL_StringOrObject(t *testing.T) {
	col, err := ParsePostmanCollection([]byte(`{
		"info": {"name": "u"},
		"item": [
			{"name": "A", "request": {"method": "GET", "url": "https://x.test/a"}},
			{"name": "B", "request": {"method": "GET", "url": {"raw": "https://x.test/b", "query": [{"key": "q", "value": "1"}]}}}
		]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "https://x.test/a", col.Items[0].Request.URL.Raw)
	assert.Equal(t, "https://x.test/b", col.Items[1].Request.URL.Raw)
	require.Len(t, col.Items[1].Request.URL.Query, 1)
	assert.Equal(t, "q", col.Items[1].Request.URL.Query[0].Key)
}

func TestPostmanText_StringOrObject(t *testing.T) {
	col, err := ParsePostmanCollection([]byte(`{
		"info": {"name": "d", "description": {"content": "rich text"}},
		"item": [{"name": "A", "description": "plain", "request": {"method": "GET", "url": "https://x.test"}}]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "rich text", col.Info.Description.String())
	assert.Equal(t, "plain", col.Items[0].Description.String())
}
