package storage

import "fmt"

// UploadSessionError means the session-open response did not contain the
// expected file descriptor, so there is nowhere to put the bytes.
type UploadSessionError struct {
	File   string
	Reason string
}

func (e *UploadSessionError) Error() string {
	return fmt.Sprintf("upload session for %s: %s", e.File, e.Reason)
}

// StorageError wraps a transport or protocol failure during a store
// operation. The remote object may be left in a pending, non-visible state;
// partial phases are not rolled back.
type StorageError struct {
	Phase string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Phase, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// DownloadError is a single-item retrieval or parse failure. Isolated: the
// item is dropped from results and the retrieval continues.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s failed: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }
