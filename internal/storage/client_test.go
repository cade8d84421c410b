package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquatrade/backend/internal/core"
)

// fakeBucket simulates the three-phase upload protocol and the listing API.
// Objects only become visible in listings after their session is closed.
type fakeBucket struct {
	mu        sync.Mutex
	server    *httptest.Server
	pending   map[string]string // session -> file name
	uploaded  map[string][]byte // file name -> content
	finalized map[string]bool   // file name -> session closed
	failEnd   bool
	failList  bool
	sessions  int
}

func newFakeBucket(t *testing.T) *fakeBucket {
	t.Helper()
	fb := &fakeBucket{
		pending:   make(map[string]string),
		uploaded:  make(map[string][]byte),
		finalized: make(map[string]bool),
	}

	r := mux.NewRouter()
	r.HandleFunc("/storage/buckets/test-bucket/upload", fb.handleStart).Methods("POST")
	r.HandleFunc("/put/{name}", fb.handlePut).Methods("PUT")
	r.HandleFunc("/storage/buckets/test-bucket/upload/{session}/end", fb.handleEnd).Methods("POST")
	r.HandleFunc("/storage/buckets/test-bucket/content", fb.handleList).Methods("GET")
	r.HandleFunc("/download/{name}", fb.handleDownload).Methods("GET")

	fb.server = httptest.NewServer(r)
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBucket) client(t *testing.T) *BucketClient {
	t.Helper()
	c, err := NewBucketClient("key", "secret", "test-bucket", fb.server.URL)
	require.NoError(t, err)
	return c
}

func (fb *fakeBucket) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		http.Error(w, "missing auth", http.StatusUnauthorized)
		return
	}
	var req uploadStartRequest
	json.NewDecoder(r.Body).Decode(&req)

	fb.mu.Lock()
	fb.sessions++
	session := fmt.Sprintf("session-%d", fb.sessions)
	files := make([]map[string]string, 0, len(req.Files))
	for _, f := range req.Files {
		fb.pending[session] = f.FileName
		files = append(files, map[string]string{
			"fileName": f.FileName,
			"url":      fb.server.URL + "/put/" + f.FileName,
		})
	}
	fb.mu.Unlock()

	json.NewEncoder(w).Encode(map[string]interface{}{
		"data": map[string]interface{}{"sessionUuid": session, "files": files},
	})
}

func (fb *fakeBucket) handlePut(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	fb.mu.Lock()
	fb.uploaded[mux.Vars(r)["name"]] = body
	fb.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (fb *fakeBucket) handleEnd(w http.ResponseWriter, r *http.Request) {
	if fb.failEnd {
		http.Error(w, "finalize rejected", http.StatusBadGateway)
		return
	}
	fb.mu.Lock()
	if name, ok := fb.pending[mux.Vars(r)["session"]]; ok {
		fb.finalized[name] = true
	}
	fb.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (fb *fakeBucket) handleList(w http.ResponseWriter, _ *http.Request) {
	if fb.failList {
		http.Error(w, "listing unavailable", http.StatusServiceUnavailable)
		return
	}
	fb.mu.Lock()
	items := []map[string]interface{}{}
	for name := range fb.uploaded {
		status := 2 // pending
		link := ""
		if fb.finalized[name] {
			status = fileStatusUploaded
			link = fb.server.URL + "/download/" + name
		}
		items = append(items, map[string]interface{}{
			"name": name, "type": itemTypeFile, "fileStatus": status, "link": link,
		})
	}
	fb.mu.Unlock()

	json.NewEncoder(w).Encode(map[string]interface{}{
		"data": map[string]interface{}{"items": items},
	})
}

func (fb *fakeBucket) handleDownload(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	body, ok := fb.uploaded[mux.Vars(r)["name"]]
	fb.mu.Unlock()
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Write(body)
}

func TestStoreRetrieveRoundTrip(t *testing.T) {
	fb := newFakeBucket(t)
	client := fb.client(t)
	ctx := context.Background()

	start := time.Now().Unix()
	require.NoError(t, client.Store(ctx, "alice", core.MessageKindTradeExecution, "ok"))

	records := client.Retrieve(ctx, "alice")
	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[0].Owner)
	assert.Equal(t, core.MessageKindTradeExecution, records[0].Kind)
	assert.Equal(t, "ok", records[0].Payload)
	assert.NotEmpty(t, records[0].ID)
	assert.GreaterOrEqual(t, records[0].Timestamp, start)
}

func TestRetrieveSortsByTimestamp(t *testing.T) {
	fb := newFakeBucket(t)
	client := fb.client(t)
	ctx := context.Background()

	// Plant records out of order, bypassing Store to control timestamps.
	for i, ts := range []int64{300, 100, 200} {
		record := core.AuditRecord{
			ID: fmt.Sprintf("id-%d", i), Owner: "alice",
			Kind: core.MessageKindTradeExecution, Payload: fmt.Sprintf("p%d", i), Timestamp: ts,
		}
		blob, _ := json.Marshal(record)
		name := objectName("alice", ts, record.ID)
		fb.uploaded[name] = blob
		fb.finalized[name] = true
	}

	records := client.Retrieve(ctx, "alice")
	require.Len(t, records, 3)
	for i := 1; i < len(records); i++ {
		assert.LessOrEqual(t, records[i-1].Timestamp, records[i].Timestamp)
	}
}

func TestRetrieveExcludesPendingAndForeign(t *testing.T) {
	fb := newFakeBucket(t)
	client := fb.client(t)
	ctx := context.Background()

	require.NoError(t, client.Store(ctx, "alice", core.MessageKindTradeExecution, "visible"))
	require.NoError(t, client.Store(ctx, "bob", core.MessageKindTradeExecution, "someone else"))

	// A file whose session never closed stays pending and must not surface,
	// even though its name prefix matches.
	fb.failEnd = true
	err := client.Store(ctx, "alice", core.MessageKindTradeExecution, "mid-upload")
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "finalize", storageErr.Phase)
	fb.failEnd = false

	records := client.Retrieve(ctx, "alice")
	require.Len(t, records, 1)
	assert.Equal(t, "visible", records[0].Payload)
}

func TestRetrieveListingFailureReturnsEmpty(t *testing.T) {
	fb := newFakeBucket(t)
	client := fb.client(t)

	require.NoError(t, client.Store(context.Background(), "alice", core.MessageKindTradeExecution, "ok"))

	fb.failList = true
	records := client.Retrieve(context.Background(), "alice")
	assert.Empty(t, records)
	assert.NotNil(t, records)
}

func TestRetrieveDropsCorruptItem(t *testing.T) {
	fb := newFakeBucket(t)
	client := fb.client(t)
	ctx := context.Background()

	require.NoError(t, client.Store(ctx, "alice", core.MessageKindTradeExecution, "good"))

	name := objectName("alice", 50, "corrupt-0000")
	fb.uploaded[name] = []byte("{not json")
	fb.finalized[name] = true

	records := client.Retrieve(ctx, "alice")
	require.Len(t, records, 1)
	assert.Equal(t, "good", records[0].Payload)
}

func TestRetrieveNoMatchesIsEmptyNotError(t *testing.T) {
	fb := newFakeBucket(t)
	records := fb.client(t).Retrieve(context.Background(), "nobody")
	assert.Empty(t, records)
}

func TestStoreMissingDescriptorFailsSession(t *testing.T) {
	// A server that opens sessions but never returns file descriptors.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/upload") {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{"sessionUuid": "s1", "files": []interface{}{}},
			})
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewBucketClient("key", "secret", "test-bucket", server.URL)
	require.NoError(t, err)

	err = client.Store(context.Background(), "alice", core.MessageKindTradeExecution, "ok")
	var sessionErr *UploadSessionError
	require.ErrorAs(t, err, &sessionErr)
}

func TestObjectNamesAvoidSameSecondCollision(t *testing.T) {
	a := objectName("alice", 1000, "aaaaaaaa-1111")
	b := objectName("alice", 1000, "bbbbbbbb-2222")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, ObjectPrefix("alice")))
}
