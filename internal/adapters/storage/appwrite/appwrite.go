package appwrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"hlsfn/internal/ports"
)

// DefaultChunkSize is the largest body Appwrite accepts in one create call.
// Bigger files go up in chunks of this size.
const DefaultChunkSize = 5 << 20

type Config struct {
	Endpoint  string // e.g. https://cloud.appwrite.io/v1
	ProjectID string
	APIKey    string
	BucketID  string
	ChunkSize int64
}

// Client implements ports.ObjectStore against the Appwrite storage REST API.
type Client struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config, httpClient *http.Client) *Client {
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Client{cfg: cfg, client: httpClient}
}

func (c *Client) Provider() string { return "appwrite" }

type fileResponse struct {
	ID             string `json:"$id"`
	SizeOriginal   int64  `json:"sizeOriginal"`
	ChunksTotal    int    `json:"chunksTotal"`
	ChunksUploaded int    `json:"chunksUploaded"`
}

type apiError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
}

func (e *apiError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("appwrite http %d (%s): %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("appwrite http %d: %s", e.Status, e.Message)
}

func (c *Client) GetObject(ctx context.Context, objectID string) (rc io.ReadCloser, contentType string, size int64, err error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.filePath(objectID)+"/download", nil)
	if err != nil {
		return nil, "", 0, err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, "", 0, err
	}
	if res.StatusCode == http.StatusNotFound {
		res.Body.Close()
		return nil, "", 0, fmt.Errorf("appwrite file %s: %w", objectID, ports.ErrObjectNotFound)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		defer res.Body.Close()
		return nil, "", 0, decodeError(res)
	}

	return res.Body, res.Header.Get("Content-Type"), res.ContentLength, nil
}

// PutObject creates a new file with a server-assigned id. Files larger than
// ChunkSize are sent in sequential Content-Range chunks that share the id
// returned for the first chunk.
func (c *Client) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	name := in.Name
	if name == "" {
		name = "file"
	}

	reader, total := in.Reader, in.Size
	if total <= 0 {
		data, err := io.ReadAll(in.Reader)
		if err != nil {
			return ports.PutObjectOutput{}, err
		}
		reader, total = bytes.NewReader(data), int64(len(data))
	}

	if total <= c.cfg.ChunkSize {
		data, err := io.ReadAll(reader)
		if err != nil {
			return ports.PutObjectOutput{}, err
		}
		created, err := c.createFile(ctx, name, in.ContentType, data, "", "", in.Public)
		if err != nil {
			return ports.PutObjectOutput{}, err
		}
		return ports.PutObjectOutput{ObjectID: created.ID, Size: int64(len(data))}, nil
	}

	var fileID string
	buf := make([]byte, c.cfg.ChunkSize)
	for start := int64(0); start < total; {
		n, err := io.ReadFull(reader, buf)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return ports.PutObjectOutput{}, err
		}
		if n == 0 {
			return ports.PutObjectOutput{}, fmt.Errorf("appwrite upload %s: short read at %d of %d", name, start, total)
		}
		end := start + int64(n) - 1
		contentRange := fmt.Sprintf("bytes %d-%d/%d", start, end, total)

		created, err := c.createFile(ctx, name, in.ContentType, buf[:n], contentRange, fileID, in.Public)
		if err != nil {
			return ports.PutObjectOutput{}, fmt.Errorf("appwrite chunk %s: %w", contentRange, err)
		}
		if fileID == "" {
			fileID = created.ID
		}
		start = end + 1
	}

	return ports.PutObjectOutput{ObjectID: fileID, Size: total}, nil
}

func (c *Client) createFile(ctx context.Context, name, contentType string, data []byte, contentRange, uploadID string, public bool) (*fileResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fileID := "unique()"
	if uploadID != "" {
		fileID = uploadID
	}
	if err := mw.WriteField("fileId", fileID); err != nil {
		return nil, err
	}
	if public {
		if err := mw.WriteField("permissions[]", `read("any")`); err != nil {
			return nil, err
		}
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.bucketPath()+"/files", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if contentRange != "" {
		req.Header.Set("Content-Range", contentRange)
	}
	if uploadID != "" {
		req.Header.Set("X-Appwrite-ID", uploadID)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, decodeError(res)
	}

	var out fileResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("appwrite: decode create response: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("appwrite: create response without $id")
	}
	return &out, nil
}

func (c *Client) DeleteObject(ctx context.Context, objectID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, c.filePath(objectID), nil)
	if err != nil {
		return err
	}
	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("appwrite file %s: %w", objectID, ports.ErrObjectNotFound)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return decodeError(res)
	}
	return nil
}

// PublicURL returns {endpoint}/storage/buckets/{bucket}/files/{id}/view?project={project}.
func (c *Client) PublicURL(objectID string) string {
	return c.cfg.Endpoint + c.filePath(objectID) + "/view?project=" + url.QueryEscape(c.cfg.ProjectID)
}

func (c *Client) bucketPath() string {
	return "/storage/buckets/" + url.PathEscape(c.cfg.BucketID)
}

func (c *Client) filePath(objectID string) string {
	return c.bucketPath() + "/files/" + url.PathEscape(objectID)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.Endpoint+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Appwrite-Project", c.cfg.ProjectID)
	req.Header.Set("X-Appwrite-Key", c.cfg.APIKey)
	return req, nil
}

func decodeError(res *http.Response) error {
	e := &apiError{Status: res.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err := json.Unmarshal(raw, e); err != nil || e.Message == "" {
		e.Message = strings.TrimSpace(string(raw))
	}
	return e
}
