package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyunwoo/slidecheck/internal/analysis"
	"github.com/hyunwoo/slidecheck/internal/models"
	"github.com/hyunwoo/slidecheck/internal/registry"
	"github.com/hyunwoo/slidecheck/internal/rewrite"
	"github.com/hyunwoo/slidecheck/internal/storage"
)

const testTimeout = 30 * time.Second

// buildDeck assembles a small presentation whose slides carry the
// misspellings the sample analyzer reports, so every correction it
// suggests can actually be applied.
func buildDeck(t *testing.T) []byte {
	t.Helper()

	slides := map[int]string{
		1: slideDoc("발표 자료"),
		2: slideDoc("프로젝트가 성공적으로 됬습니다", "어떻개 진행할지 계획을 세워야 합니다"),
		3: slideDoc("몇일 전부터 준비해왔습니다", "그렇치 않나요?"),
		4: slideDoc("다음에 더 잘 할께요"),
		5: slideDoc("이렇게 하면 안되요"),
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`))
	require.NoError(t, err)

	for n := 1; n <= len(slides); n++ {
		w, err := zw.Create(fmt.Sprintf("ppt/slides/slide%d.xml", n))
		require.NoError(t, err)
		_, err = w.Write([]byte(slides[n]))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func slideDoc(shapeTexts ...string) string {
	var body bytes.Buffer
	for _, text := range shapeTexts {
		fmt.Fprintf(&body, `<p:sp><p:txBody><a:p><a:r><a:t>%s</a:t></a:r></a:p></p:txBody></p:sp>`, text)
	}
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
		`xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">` +
		`<p:cSld><p:spTree>` + body.String() + `</p:spTree></p:cSld></p:sld>`
}

// multipartBody builds a one-file multipart form the upload handler
// accepts.
func multipartBody(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func newBlobStore(t *testing.T) *storage.DiskStore {
	t.Helper()

	blobs, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	return blobs
}

// seedSession stores an artifact and its session record directly,
// bypassing the upload handler.
func seedSession(t *testing.T, reg registry.Registry, blobs storage.BlobStore, id string, data []byte) *models.FileSession {
	t.Helper()

	ctx := context.Background()
	key := id + ".pptx"
	require.NoError(t, blobs.Put(ctx, key, data))
	session := &models.FileSession{
		ID:           id,
		OriginalName: "deck.pptx",
		StorageKey:   key,
		SizeBytes:    int64(len(data)),
		Checksum:     storage.Checksum(data),
		UploadedAt:   time.Now(),
	}
	require.NoError(t, reg.Put(ctx, session))
	return session
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error.Code
}

func TestUploadRejectsNonPptx(t *testing.T) {
	reg := registry.NewMemory()
	handler := NewUploadHandler(newBlobStore(t), reg, 5<<20)

	body, contentType := multipartBody(t, "deck.pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeErrorCode(t, rec))

	// Nothing was persisted for the rejected upload.
	sessions, err := reg.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestUploadRejectsOversize(t *testing.T) {
	reg := registry.NewMemory()
	handler := NewUploadHandler(newBlobStore(t), reg, 1024)

	body, contentType := multipartBody(t, "deck.pptx", bytes.Repeat([]byte("x"), 2048))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE_TOO_LARGE", decodeErrorCode(t, rec))
}

func TestUploadMissingField(t *testing.T) {
	handler := NewUploadHandler(newBlobStore(t), registry.NewMemory(), 5<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=none")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeErrorCode(t, rec))
}

func TestUploadSuccess(t *testing.T) {
	reg := registry.NewMemory()
	blobs := newBlobStore(t)
	handler := NewUploadHandler(blobs, reg, 5<<20)
	deck := buildDeck(t)

	upload := func() UploadResponse {
		body, contentType := multipartBody(t, "deck.pptx", deck)
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp UploadResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		return resp
	}

	first := upload()
	assert.Equal(t, "deck.pptx", first.Filename)
	assert.Equal(t, int64(len(deck)), first.SizeBytes)

	session, err := reg.Get(context.Background(), first.FileID)
	require.NoError(t, err)
	assert.False(t, session.IsDerived)
	assert.Nil(t, session.CheckResult)

	stored, err := blobs.Get(context.Background(), session.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, deck, stored)

	// Identical content still gets its own session.
	second := upload()
	assert.NotEqual(t, first.FileID, second.FileID)
}

func checkRequest(fileID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/check", strings.NewReader("file_id="+fileID))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestCheckUnknownID(t *testing.T) {
	handler := NewCheckHandler(registry.NewMemory(), newBlobStore(t), nil, analysis.NewStatic(), testTimeout)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, checkRequest("no-such-id"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeErrorCode(t, rec))
}

func TestCheckMissingFileID(t *testing.T) {
	handler := NewCheckHandler(registry.NewMemory(), newBlobStore(t), nil, analysis.NewStatic(), testTimeout)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, checkRequest(""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeErrorCode(t, rec))
}

func TestCheckAttachesReport(t *testing.T) {
	reg := registry.NewMemory()
	blobs := newBlobStore(t)
	handler := NewCheckHandler(reg, blobs, nil, analysis.NewStatic(), testTimeout)
	seedSession(t, reg, blobs, "abc", buildDeck(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, checkRequest("abc"))
	require.Equal(t, http.StatusOK, rec.Code)

	var report models.CorrectionReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, "abc", report.SessionID)
	assert.Equal(t, len(report.Errors), report.TotalErrors)
	assert.NotEmpty(t, report.Errors)

	session, err := reg.Get(context.Background(), "abc")
	require.NoError(t, err)
	require.NotNil(t, session.CheckResult)
	assert.Equal(t, report.TotalErrors, session.CheckResult.TotalErrors)

	// A second check replaces the report rather than failing.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, checkRequest("abc"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func correctRequest(t *testing.T, body CorrectRequest) *http.Request {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/correct", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCorrectBeforeCheck(t *testing.T) {
	reg := registry.NewMemory()
	blobs := newBlobStore(t)
	handler := NewCorrectHandler(reg, blobs, nil, rewrite.NewPptxRewriter(), testTimeout)
	seedSession(t, reg, blobs, "abc", buildDeck(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, correctRequest(t, CorrectRequest{FileID: "abc", SelectedIndices: []int{0}}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PRECONDITION_FAILED", decodeErrorCode(t, rec))
}

func TestCorrectUnknownID(t *testing.T) {
	handler := NewCorrectHandler(registry.NewMemory(), newBlobStore(t), nil, rewrite.NewPptxRewriter(), testTimeout)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, correctRequest(t, CorrectRequest{FileID: "ghost"}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeErrorCode(t, rec))
}

func TestCorrectAppliesSelection(t *testing.T) {
	reg := registry.NewMemory()
	blobs := newBlobStore(t)
	checkHandler := NewCheckHandler(reg, blobs, nil, analysis.NewStatic(), testTimeout)
	correctHandler := NewCorrectHandler(reg, blobs, nil, rewrite.NewPptxRewriter(), testTimeout)
	deck := buildDeck(t)
	seedSession(t, reg, blobs, "abc", deck)

	rec := httptest.NewRecorder()
	checkHandler.ServeHTTP(rec, checkRequest("abc"))
	require.Equal(t, http.StatusOK, rec.Code)

	session, err := reg.Get(context.Background(), "abc")
	require.NoError(t, err)
	total := len(session.CheckResult.Errors)

	// Select every candidate plus an out-of-range index, which is
	// silently dropped.
	indices := make([]int, 0, total+1)
	for i := 0; i < total; i++ {
		indices = append(indices, i)
	}
	indices = append(indices, 99)

	rec = httptest.NewRecorder()
	correctHandler.ServeHTTP(rec, correctRequest(t, CorrectRequest{FileID: "abc", SelectedIndices: indices}))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CorrectResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, total, resp.TotalRequested)
	assert.Equal(t, resp.TotalRequested, resp.AppliedCount+resp.FailedCount)
	assert.Equal(t, total, resp.AppliedCount)
	assert.Contains(t, resp.Filename, "_corrected_")
	assert.True(t, strings.HasSuffix(resp.Filename, ".pptx"))

	derived, err := reg.Get(context.Background(), resp.NewFileID)
	require.NoError(t, err)
	assert.True(t, derived.IsDerived)
	assert.Equal(t, "abc", derived.ParentID)
	assert.Nil(t, derived.CheckResult)

	// The parent artifact is untouched.
	parent, err := blobs.Get(context.Background(), session.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, deck, parent)
}

func TestCorrectEmptySelection(t *testing.T) {
	reg := registry.NewMemory()
	blobs := newBlobStore(t)
	checkHandler := NewCheckHandler(reg, blobs, nil, analysis.NewStatic(), testTimeout)
	correctHandler := NewCorrectHandler(reg, blobs, nil, rewrite.NewPptxRewriter(), testTimeout)
	seedSession(t, reg, blobs, "abc", buildDeck(t))

	rec := httptest.NewRecorder()
	checkHandler.ServeHTTP(rec, checkRequest("abc"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	correctHandler.ServeHTTP(rec, correctRequest(t, CorrectRequest{FileID: "abc"}))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CorrectResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Zero(t, resp.AppliedCount)
	assert.Zero(t, resp.FailedCount)
	assert.Zero(t, resp.TotalRequested)
	assert.NotEmpty(t, resp.NewFileID)
}

func downloadRequest(fileID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/download/"+fileID, nil)
	return mux.SetURLVars(req, map[string]string{"file_id": fileID})
}

func TestDownloadUnknownID(t *testing.T) {
	handler := NewDownloadHandler(registry.NewMemory(), newBlobStore(t), nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, downloadRequest("ghost"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeErrorCode(t, rec))
}

func TestDownloadMissingArtifact(t *testing.T) {
	reg := registry.NewMemory()
	blobs := newBlobStore(t)
	handler := NewDownloadHandler(reg, blobs, nil)

	session := seedSession(t, reg, blobs, "abc", buildDeck(t))
	require.NoError(t, blobs.Delete(context.Background(), session.StorageKey))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, downloadRequest("abc"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeErrorCode(t, rec))
}

func TestDownloadSuccess(t *testing.T) {
	reg := registry.NewMemory()
	blobs := newBlobStore(t)
	handler := NewDownloadHandler(reg, blobs, nil)
	deck := buildDeck(t)
	seedSession(t, reg, blobs, "abc", deck)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, downloadRequest("abc"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pptxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="deck.pptx"`)
	assert.Equal(t, deck, rec.Body.Bytes())
}

func TestDownloadChecksumMismatch(t *testing.T) {
	reg := registry.NewMemory()
	blobs := newBlobStore(t)
	handler := NewDownloadHandler(reg, blobs, nil)

	session := seedSession(t, reg, blobs, "abc", buildDeck(t))
	// Corrupt the stored artifact behind the session's back.
	require.NoError(t, blobs.Put(context.Background(), session.StorageKey, []byte("corrupted")))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, downloadRequest("abc"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeErrorCode(t, rec))
}

func cleanupRequest(fileID string) *http.Request {
	req := httptest.NewRequest(http.MethodDelete, "/api/cleanup/"+fileID, nil)
	return mux.SetURLVars(req, map[string]string{"file_id": fileID})
}

func TestCleanupRemovesSession(t *testing.T) {
	reg := registry.NewMemory()
	blobs := newBlobStore(t)
	handler := NewCleanupHandler(reg, blobs, nil)
	session := seedSession(t, reg, blobs, "abc", buildDeck(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, cleanupRequest("abc"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CleanupResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)

	_, err := reg.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, registry.ErrNotFound)
	_, err = blobs.Get(context.Background(), session.StorageKey)
	assert.ErrorIs(t, err, storage.ErrBlobNotFound)

	// Cleaning an already-removed session still succeeds.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, cleanupRequest("abc"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Message, "already")
}
