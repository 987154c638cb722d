package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/JonMunkholm/secretaria/internal/table"
)

// Resource is one backend collection.
type Resource struct {
	c    *Client
	name string
}

// Resource returns the collection called name.
func (c *Client) Resource(name string) *Resource {
	return &Resource{c: c, name: name}
}

// Name returns the collection name.
func (r *Resource) Name() string {
	return r.name
}

// List fetches every record. A response that is not a JSON array is logged
// and treated as an empty list.
func (r *Resource) List(ctx context.Context) ([]table.Record, error) {
	var raw json.RawMessage
	if err := r.c.Do(ctx, http.MethodGet, r.name, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList(ctx, r.c.logger, r.name, raw)
}

func decodeList(ctx context.Context, logger *slog.Logger, name string, raw json.RawMessage) ([]table.Record, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		logger.WarnContext(ctx, "list response is not an array", "resource", name)
		return []table.Record{}, nil
	}
	var out []table.Record
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s list: %w", name, err)
	}
	if out == nil {
		out = []table.Record{}
	}
	return out, nil
}

// Get fetches one record.
func (r *Resource) Get(ctx context.Context, id string) (table.Record, error) {
	var out table.Record
	if err := r.c.Do(ctx, http.MethodGet, r.name+"/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create posts a new record and returns the backend's response.
func (r *Resource) Create(ctx context.Context, rec any) (table.Record, error) {
	var out table.Record
	if err := r.c.Do(ctx, http.MethodPost, r.name, rec, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update replaces a record; rec carries its id.
func (r *Resource) Update(ctx context.Context, rec any) (table.Record, error) {
	var out table.Record
	if err := r.c.Do(ctx, http.MethodPut, r.name, rec, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the record with the given id.
func (r *Resource) Delete(ctx context.Context, id any) error {
	return r.c.Do(ctx, http.MethodDelete, r.name, map[string]any{"id": id}, nil)
}

// patch sends a partial update to a sub-path of the collection.
func (r *Resource) patch(ctx context.Context, sub string, body any) error {
	return r.c.Do(ctx, http.MethodPatch, r.name+"/"+sub, body, nil)
}
