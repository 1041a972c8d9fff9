package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"notesync/syncproto"

	"github.com/rohanthewiz/serr"
)

// Remote is the server's sync API as the device sees it.
type Remote interface {
	Sync(ctx context.Context, manifest []syncproto.ManifestItem) (syncproto.SyncResult, error)
	Add(ctx context.Context, note syncproto.Note) error
	AddRange(ctx context.Context, notes []syncproto.Note) (int, error)
	// Update returns the server's msg: OK, DELETED or NOT_FOUND.
	Update(ctx context.Context, note syncproto.Note) (string, error)
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) error
	Restore(ctx context.Context, note syncproto.Note) error
	Upload(ctx context.Context, name string, data []byte) error
	Download(ctx context.Context, name string) ([]byte, error)
}

// StatusError is a non-success HTTP response.
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Msg)
}

// HTTPRemote calls the sync API over HTTP+JSON. Every call is bounded by
// the client timeout.
type HTTPRemote struct {
	baseURL    string
	user       string
	token      string
	httpClient *http.Client
}

func NewHTTPRemote(cfg *Config) *HTTPRemote {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPRemote{
		baseURL:    cfg.ServerURL,
		user:       cfg.User,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (r *HTTPRemote) url(parts ...string) string {
	u := r.baseURL
	for _, p := range parts {
		u += "/" + url.PathEscape(p)
	}
	return u
}

// do sends a request and returns the response body for 2xx statuses.
func (r *HTTPRemote) do(ctx context.Context, method, target, contentType string, body io.Reader) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, 0, serr.Wrap(err, "failed to create request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, 0, serr.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, serr.Wrap(err, "failed to read response")
	}
	return data, resp.StatusCode, nil
}

func (r *HTTPRemote) doJSON(ctx context.Context, method, target string, in interface{}) ([]byte, int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, 0, serr.Wrap(err, "failed to encode request")
		}
		body = bytes.NewReader(b)
	}
	return r.do(ctx, method, target, "application/json", body)
}

func statusErr(code int, data []byte) error {
	var msg syncproto.MsgResponse
	if err := json.Unmarshal(data, &msg); err != nil || msg.Msg == "" {
		msg.Msg = http.StatusText(code)
	}
	return &StatusError{Code: code, Msg: msg.Msg}
}

// expectOK decodes a {msg} body and requires a 200.
func expectOK(data []byte, code int) (syncproto.MsgResponse, error) {
	var msg syncproto.MsgResponse
	if code != http.StatusOK {
		return msg, statusErr(code, data)
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, serr.Wrap(err, "failed to decode response")
	}
	return msg, nil
}

func (r *HTTPRemote) Sync(ctx context.Context, manifest []syncproto.ManifestItem) (syncproto.SyncResult, error) {
	var res syncproto.SyncResult
	if manifest == nil {
		manifest = []syncproto.ManifestItem{}
	}

	data, code, err := r.doJSON(ctx, http.MethodPost, r.url("notes", "sync", r.user), syncproto.SyncRequest{Data: manifest})
	if err != nil {
		return res, err
	}
	if code != http.StatusOK {
		return res, statusErr(code, data)
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return syncproto.SyncResult{}, serr.Wrap(err, "failed to decode sync result")
	}
	return res, nil
}

func (r *HTTPRemote) Add(ctx context.Context, note syncproto.Note) error {
	data, code, err := r.doJSON(ctx, http.MethodPost, r.url("notes", "add", r.user), note)
	if err != nil {
		return err
	}
	_, err = expectOK(data, code)
	return err
}

func (r *HTTPRemote) AddRange(ctx context.Context, notes []syncproto.Note) (int, error) {
	data, code, err := r.doJSON(ctx, http.MethodPost, r.url("notes", "addrange", r.user), notes)
	if err != nil {
		return 0, err
	}
	msg, err := expectOK(data, code)
	if err != nil {
		return 0, err
	}
	if msg.Inserted == nil {
		return len(notes), nil
	}
	return *msg.Inserted, nil
}

func (r *HTTPRemote) Update(ctx context.Context, note syncproto.Note) (string, error) {
	data, code, err := r.doJSON(ctx, http.MethodPut, r.url("notes", "update", r.user), note)
	if err != nil {
		return "", err
	}
	if code == http.StatusNotFound {
		return syncproto.MsgNotFound, nil
	}
	msg, err := expectOK(data, code)
	if err != nil {
		return "", err
	}
	return msg.Msg, nil
}

func (r *HTTPRemote) Delete(ctx context.Context, id string) error {
	data, code, err := r.doJSON(ctx, http.MethodDelete, r.url("notes", "delete", r.user, id), nil)
	if err != nil {
		return err
	}
	_, err = expectOK(data, code)
	return err
}

func (r *HTTPRemote) DeleteMany(ctx context.Context, ids []string) error {
	data, code, err := r.doJSON(ctx, http.MethodPost, r.url("notes", "delete", r.user), ids)
	if err != nil {
		return err
	}
	_, err = expectOK(data, code)
	return err
}

func (r *HTTPRemote) Restore(ctx context.Context, note syncproto.Note) error {
	data, code, err := r.doJSON(ctx, http.MethodPut, r.url("notes", "restore", r.user, note.ID), note)
	if err != nil {
		return err
	}
	_, err = expectOK(data, code)
	return err
}

func (r *HTTPRemote) Upload(ctx context.Context, name string, content []byte) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return serr.Wrap(err, "failed to create multipart field")
	}
	if _, err := fw.Write(content); err != nil {
		return serr.Wrap(err, "failed to write multipart body")
	}
	if err := mw.Close(); err != nil {
		return serr.Wrap(err, "failed to close multipart body")
	}

	data, code, err := r.do(ctx, http.MethodPost, r.url("attachements", "file", r.user, name), mw.FormDataContentType(), &buf)
	if err != nil {
		return err
	}
	_, err = expectOK(data, code)
	return err
}

func (r *HTTPRemote) Download(ctx context.Context, name string) ([]byte, error) {
	data, code, err := r.do(ctx, http.MethodGet, r.url("attachements", "file", r.user, name), "", nil)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, statusErr(code, data)
	}
	return data, nil
}
