// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// UploadTimeout bounds a single document upload. Large PDFs over slow
// links take far longer than the default request timeout allows.
const UploadTimeout = 5 * time.Minute

// ErrEmptyFile is returned when the file to upload has no content.
var ErrEmptyFile = errors.New("api: file is empty")

// UploadDocument streams a single file to the server's document ingest
// endpoint. The request body is piped rather than buffered so memory
// use stays flat regardless of file size. Uploads are never retried;
// the caller decides whether a failed file should be resubmitted.
func (c *Client) UploadDocument(ctx context.Context, path, category, userID string) (*UploadResult, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", filepath.Base(path), err)
	}
	if info.Size() == 0 {
		return nil, ErrEmptyFile
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		if category != "" {
			if err := mw.WriteField("category", category); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.CloseWithError(mw.Close())
	}()

	ctx, cancel := context.WithTimeout(ctx, UploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/documents/", pr)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", userID)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	// The shared client's Timeout would cap the whole exchange; uploads
	// run on the dedicated client and are bounded by the context alone.
	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, data)
	}

	var result UploadResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse upload response: %w", err)
	}
	if result.Filename == "" {
		result.Filename = filepath.Base(path)
	}
	return &result, nil
}
