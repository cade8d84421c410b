// Package storage implements the append-only audit trail on a bucket service
// whose upload protocol is a three-phase handshake: open a session, PUT the
// bytes to a per-file URL, close the session. There is no direct
// PUT-with-content endpoint.
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aquatrade/backend/internal/core"
)

const defaultBaseURL = "https://api.apillon.io"

// Remote item states as the listing API reports them.
const (
	itemTypeFile       = 2
	fileStatusUploaded = 4
)

// BucketClient talks to one bucket. A static credential pair rides on every
// request as a Basic-auth header.
type BucketClient struct {
	bucketURL  string
	authHeader string
	httpClient *http.Client
	logger     *log.Logger
}

// NewBucketClient builds a client for the given bucket. baseURL may be empty
// to use the hosted service.
func NewBucketClient(apiKey, apiSecret, bucketUUID, baseURL string) (*BucketClient, error) {
	if apiKey == "" || apiSecret == "" || bucketUUID == "" {
		return nil, fmt.Errorf("storage API key, secret and bucket UUID must be set")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	creds := base64.StdEncoding.EncodeToString([]byte(apiKey + ":" + apiSecret))
	return &BucketClient{
		bucketURL:  fmt.Sprintf("%s/storage/buckets/%s", strings.TrimRight(baseURL, "/"), bucketUUID),
		authHeader: "Basic " + creds,
		httpClient: &http.Client{},
		logger:     log.New(log.Writer(), "[AuditStorage] ", log.LstdFlags),
	}, nil
}

// ObjectPrefix is the listing prefix that groups one owner's records. It is
// the only index the bucket offers.
func ObjectPrefix(owner string) string {
	return fmt.Sprintf("trade-%s-", owner)
}

// objectName ties the object identity to the owner for prefix retrieval. The
// uuid suffix keeps two stores within the same second from colliding.
func objectName(owner string, ts int64, id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s%d-%s.json", ObjectPrefix(owner), ts, short)
}

// Upload session wire shapes.

type uploadStartRequest struct {
	Files []uploadFileDescriptor `json:"files"`
}

type uploadFileDescriptor struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

type uploadStartResponse struct {
	Data struct {
		SessionUUID string `json:"sessionUuid"`
		Files       []struct {
			FileName string `json:"fileName"`
			URL      string `json:"url"`
		} `json:"files"`
	} `json:"data"`
}

type contentListResponse struct {
	Data struct {
		Items []contentItem `json:"items"`
	} `json:"data"`
}

type contentItem struct {
	Name       string `json:"name"`
	Type       int    `json:"type"`
	FileStatus int    `json:"fileStatus"`
	Link       string `json:"link"`
}

// Store serializes one audit record and pushes it through the three-phase
// handshake. Any failure aborts the whole operation; a session left open
// after phase A or B is accepted as a pending, non-visible remote object.
func (c *BucketClient) Store(ctx context.Context, ownerID, kind, payload string) error {
	now := time.Now().Unix()
	record := core.AuditRecord{
		ID:        uuid.NewString(),
		Owner:     ownerID,
		Kind:      kind,
		Payload:   payload,
		Timestamp: now,
	}
	blob, err := json.Marshal(record)
	if err != nil {
		return &StorageError{Phase: "serialize", Err: err}
	}
	name := objectName(ownerID, now, record.ID)

	// Phase A: open the session and learn the per-file upload URL.
	startReq := uploadStartRequest{Files: []uploadFileDescriptor{
		{FileName: name, ContentType: "application/json"},
	}}
	var startResp uploadStartResponse
	if err := c.postJSON(ctx, c.bucketURL+"/upload", startReq, &startResp); err != nil {
		return &StorageError{Phase: "open session", Err: err}
	}

	uploadURL := ""
	for _, f := range startResp.Data.Files {
		if f.FileName == name {
			uploadURL = f.URL
			break
		}
	}
	if uploadURL == "" {
		return &UploadSessionError{File: name, Reason: "no upload URL in session response"}
	}

	// Phase B: transfer the raw bytes. The URL is pre-signed; no auth header.
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(blob))
	if err != nil {
		return &StorageError{Phase: "transfer", Err: err}
	}
	if err := c.do(req, nil); err != nil {
		return &StorageError{Phase: "transfer", Err: err}
	}

	// Phase C: finalize. Until this lands the object stays pending remotely.
	endURL := fmt.Sprintf("%s/upload/%s/end", c.bucketURL, startResp.Data.SessionUUID)
	if err := c.postJSON(ctx, endURL, struct{}{}, nil); err != nil {
		return &StorageError{Phase: "finalize", Err: err}
	}

	c.logger.Printf("Stored audit record %s for %s", name, ownerID)
	return nil
}

// Ping lists the bucket once and surfaces the error, unlike Retrieve which
// absorbs listing failures. Used by the pre-flight diagnostic only.
func (c *BucketClient) Ping(ctx context.Context) error {
	var listing contentListResponse
	if err := c.getJSON(ctx, c.bucketURL+"/content", &listing); err != nil {
		return fmt.Errorf("list bucket content: %w", err)
	}
	return nil
}

// Retrieve lists the bucket, filters to the owner's fully uploaded records,
// downloads them concurrently and returns them sorted ascending by
// timestamp. Recomputed fresh on every call. A listing failure yields an
// empty slice: callers treat "no history" as benign and retryable, and a
// single bad item is dropped rather than failing the rest.
func (c *BucketClient) Retrieve(ctx context.Context, ownerID string) []core.AuditRecord {
	var listing contentListResponse
	if err := c.getJSON(ctx, c.bucketURL+"/content", &listing); err != nil {
		c.logger.Printf("Listing bucket content failed: %v", err)
		return []core.AuditRecord{}
	}

	prefix := ObjectPrefix(ownerID)
	var matched []contentItem
	for _, item := range listing.Data.Items {
		// Entries mid-upload (no link yet, or a pending fileStatus) are an
		// expected benign state, silently excluded.
		if strings.HasPrefix(item.Name, prefix) &&
			item.Type == itemTypeFile &&
			item.FileStatus == fileStatusUploaded &&
			item.Link != "" {
			matched = append(matched, item)
		}
	}
	if len(matched) == 0 {
		return []core.AuditRecord{}
	}

	// Unordered fan-out; one failed download never cancels the others.
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		records = make([]core.AuditRecord, 0, len(matched))
	)
	for _, item := range matched {
		wg.Add(1)
		go func(item contentItem) {
			defer wg.Done()
			record, err := c.downloadRecord(ctx, item.Link)
			if err != nil {
				c.logger.Printf("Dropping item %s: %v", item.Name, err)
				return
			}
			mu.Lock()
			records = append(records, record)
			mu.Unlock()
		}(item)
	}
	wg.Wait()

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp < records[j].Timestamp
	})
	return records
}

func (c *BucketClient) downloadRecord(ctx context.Context, link string) (core.AuditRecord, error) {
	var record core.AuditRecord

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return record, &DownloadError{URL: link, Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return record, &DownloadError{URL: link, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return record, &DownloadError{URL: link, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return record, &DownloadError{URL: link, Err: fmt.Errorf("parse record: %w", err)}
	}
	return record, nil
}

func (c *BucketClient) postJSON(ctx context.Context, url string, body, result interface{}) error {
	blob, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(blob))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

func (c *BucketClient) getJSON(ctx context.Context, url string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.authHeader)
	return c.do(req, result)
}

func (c *BucketClient) do(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, string(raw))
	}
	if result == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}
