package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecrate/dedup-service/internal/api"
	"github.com/filecrate/dedup-service/internal/api/handlers"
	"github.com/filecrate/dedup-service/internal/dedup"
	"github.com/filecrate/dedup-service/internal/storage"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestServer(t *testing.T) (*gin.Engine, *storage.MemoryBlobStore) {
	t.Helper()
	records := storage.NewMemoryRecordStore()
	blobs := storage.NewMemoryBlobStore()
	engine := dedup.NewEngine(records, blobs)
	cache := dedup.NewQueryCache(16, time.Minute)
	engine.OnMutation(cache.InvalidateAll)

	r := gin.New()
	h := handlers.NewFileHandler(engine, records, blobs, cache, nil, 200<<20)
	api.RegisterRoutes(r, h)
	return r, blobs
}

func multipartUpload(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func doUpload(t *testing.T, r *gin.Engine, filename, content string) map[string]interface{} {
	t.Helper()
	body, contentType := multipartUpload(t, filename, content, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Results []map[string]interface{} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	return resp.Results[0]
}

func TestUploadAndDeduplicate(t *testing.T) {
	r, _ := newTestServer(t)

	first := doUpload(t, r, "a.txt", "duplicate me")
	require.Equal(t, true, first["success"])
	assert.Nil(t, first["duplicate"])
	file := first["file"].(map[string]interface{})
	assert.Equal(t, float64(1), file["reference_count"])
	assert.Equal(t, float64(0), file["saved_space"])

	second := doUpload(t, r, "b.txt", "duplicate me")
	require.Equal(t, true, second["success"])
	assert.Equal(t, true, second["duplicate"])
	assert.Equal(t, "File already exists; no duplicate stored.", second["message"])
	dupFile := second["file"].(map[string]interface{})
	assert.Equal(t, file["id"], dupFile["id"])
	assert.Equal(t, float64(2), dupFile["reference_count"])
	assert.Equal(t, "a.txt", dupFile["original_filename"])
	assert.Equal(t, float64(12), dupFile["saved_space"])
}

func TestUploadNoFile(t *testing.T) {
	r, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewReader(nil))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=empty")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadOversizedFileFailsOnlyThatFile(t *testing.T) {
	records := storage.NewMemoryRecordStore()
	blobs := storage.NewMemoryBlobStore()
	engine := dedup.NewEngine(records, blobs)
	cache := dedup.NewQueryCache(16, time.Minute)
	engine.OnMutation(cache.InvalidateAll)

	r := gin.New()
	h := handlers.NewFileHandler(engine, records, blobs, cache, nil, 8)
	api.RegisterRoutes(r, h)

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, f := range []struct{ name, content string }{
		{"small.txt", "tiny"},
		{"huge.txt", "well past the eight byte cap"},
	} {
		part, err := w.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Results []map[string]interface{} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, true, resp.Results[0]["success"])
	assert.Contains(t, resp.Results[1]["error"], "huge.txt")

	// The batch still ingested the file that fit.
	all, err := records.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUploadMalformedTags(t *testing.T) {
	r, _ := newTestServer(t)
	body, contentType := multipartUpload(t, "a.txt", "content", map[string]string{"tags": "not-json"})
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteDecrementThenDelete(t *testing.T) {
	r, blobs := newTestServer(t)

	first := doUpload(t, r, "a.txt", "shared content")
	doUpload(t, r, "b.txt", "shared content")
	file := first["file"].(map[string]interface{})
	id := file["id"].(string)
	fingerprint := file["file_hash"].(string)

	// First delete only decrements.
	req := httptest.NewRequest(http.MethodDelete, "/api/files/"+id, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var decremented map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decremented))
	assert.Equal(t, float64(1), decremented["reference_count"])
	assert.True(t, blobs.Has(fingerprint))

	// Second delete removes the record and the blob.
	req = httptest.NewRequest(http.MethodDelete, "/api/files/"+id, nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, blobs.Has(fingerprint))

	// Third delete is a 404.
	req = httptest.NewRequest(http.MethodDelete, "/api/files/"+id, nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSavingsAndStatsEndpoints(t *testing.T) {
	r, _ := newTestServer(t)

	content := "17 bytes of text!"
	require.Len(t, content, 17)
	doUpload(t, r, "a.txt", content)
	doUpload(t, r, "b.txt", content)

	req := httptest.NewRequest(http.MethodGet, "/api/files/savings", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var savings map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &savings))
	assert.Equal(t, float64(17), savings["total_bytes"])

	req = httptest.NewRequest(http.MethodGet, "/api/files/stats", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, float64(1), stats["unique_files"])
	assert.Equal(t, float64(2), stats["total_uploads"])
	assert.Equal(t, float64(50), stats["duplication_rate"])
	storageStats := stats["storage"].(map[string]interface{})
	assert.Equal(t, float64(17), storageStats["actual_bytes"])
	assert.Equal(t, float64(17), storageStats["saved_bytes"])
	assert.Equal(t, float64(34), storageStats["without_dedup_bytes"])
	assert.Equal(t, float64(50), storageStats["efficiency_percentage"])
}

func TestAdvancedSearch(t *testing.T) {
	r, _ := newTestServer(t)

	doUpload(t, r, "small.txt", "tiny")
	doUpload(t, r, "big.txt", "this one is substantially larger than the other upload")

	req := httptest.NewRequest(http.MethodGet, "/api/files/advanced_search?min_size=10&date_range=this_week", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Files []map[string]interface{} `json:"files"`
		Total int                      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "big.txt", resp.Files[0]["original_filename"])
}

func TestBulkDelete(t *testing.T) {
	r, _ := newTestServer(t)

	first := doUpload(t, r, "a.txt", "bulk content a")
	id := first["file"].(map[string]interface{})["id"].(string)

	payload, _ := json.Marshal(map[string]interface{}{"ids": []string{id, "missing-id"}})
	req := httptest.NewRequest(http.MethodPost, "/api/files/bulk_delete", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Released int               `json:"released"`
		Errors   map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Released)
	assert.Contains(t, result.Errors, "missing-id")
}

func TestBulkTag(t *testing.T) {
	r, _ := newTestServer(t)

	first := doUpload(t, r, "a.txt", "taggable content")
	id := first["file"].(map[string]interface{})["id"].(string)

	payload, _ := json.Marshal(map[string]interface{}{
		"ids":  []string{id, "missing-id"},
		"tags": []string{"alpha", "alpha", "beta"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/files/bulk_tag", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Tagged int               `json:"tagged"`
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Tagged)
	assert.Contains(t, result.Errors, "missing-id")

	req = httptest.NewRequest(http.MethodGet, "/api/files/"+id, nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var file map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &file))
	assert.Equal(t, []interface{}{"alpha", "beta"}, file["tags"])
}

func TestDownload(t *testing.T) {
	r, _ := newTestServer(t)

	first := doUpload(t, r, "dl.txt", "download me")
	id := first["file"].(map[string]interface{})["id"].(string)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/files/%s/download", id), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "download me", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "dl.txt")
}

func TestListPagination(t *testing.T) {
	r, _ := newTestServer(t)

	doUpload(t, r, "one.txt", "content one")
	doUpload(t, r, "two.txt", "content two")
	doUpload(t, r, "three.txt", "content three")

	req := httptest.NewRequest(http.MethodGet, "/api/files?limit=2&offset=0", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Files []map[string]interface{} `json:"files"`
		Total int                      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Len(t, resp.Files, 2)
}

func TestHealth(t *testing.T) {
	r, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
