package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"hlsfn/internal/ports"
)

// Client implements ports.ObjectStore backed by Google Drive.
// Object ids are Drive file ids; uploads land in folderID when it is set.
type Client struct {
	srv      *drive.Service
	folderID string
}

func NewClient(srv *drive.Service, folderID string) *Client {
	return &Client{srv: srv, folderID: folderID}
}

func (c *Client) Provider() string { return "gdrive" }

func (c *Client) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.Name == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("gdrive: name is required")
	}

	file := &drive.File{Name: in.Name}
	if c.folderID != "" {
		file.Parents = []string{c.folderID}
	}
	if in.ContentType != "" {
		file.MimeType = in.ContentType
	}

	call := c.srv.Files.Create(file).SupportsAllDrives(true)
	if in.ContentType != "" {
		call = call.Media(in.Reader, googleapi.ContentType(in.ContentType))
	} else {
		call = call.Media(in.Reader)
	}

	created, err := call.Context(ctx).Do()
	if err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("gdrive upload failed: %w", err)
	}

	if in.Public {
		perm := &drive.Permission{Type: "anyone", Role: "reader"}
		if _, err := c.srv.Permissions.Create(created.Id, perm).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
			return ports.PutObjectOutput{}, fmt.Errorf("gdrive share %s failed: %w", created.Id, err)
		}
	}

	return ports.PutObjectOutput{ObjectID: created.Id, Size: in.Size}, nil
}

func (c *Client) GetObject(ctx context.Context, objectID string) (rc io.ReadCloser, contentType string, size int64, err error) {
	resp, err := c.srv.Files.Get(objectID).
		SupportsAllDrives(true).
		Context(ctx).
		Download()
	if err != nil {
		return nil, "", 0, mapNotFound(objectID, err)
	}

	return resp.Body, resp.Header.Get("Content-Type"), resp.ContentLength, nil
}

func (c *Client) DeleteObject(ctx context.Context, objectID string) error {
	err := c.srv.Files.Delete(objectID).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	return mapNotFound(objectID, err)
}

func (c *Client) PublicURL(objectID string) string {
	return "https://drive.google.com/uc?export=download&id=" + url.QueryEscape(objectID)
}

func mapNotFound(objectID string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("gdrive %s: %w", objectID, ports.ErrObjectNotFound)
	}
	return err
}
