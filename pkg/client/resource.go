package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/residenciauni/residencia/pkg/contextkeys"
)

// Resource is a REST collection of records of type T
type Resource[T any] struct {
	client *Client
	path   string
	module string
}

// NewResource binds a collection path such as "/news" to a record type
func NewResource[T any](c *Client, path, module string) *Resource[T] {
	return &Resource[T]{
		client: c,
		path:   "/" + strings.Trim(path, "/"),
		module: module,
	}
}

// Path returns the collection path
func (r *Resource[T]) Path() string {
	return r.path
}

func (r *Resource[T]) ctx(ctx context.Context) context.Context {
	if r.module == "" {
		return ctx
	}
	return contextkeys.WithModule(ctx, r.module)
}

func (r *Resource[T]) itemPath(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

// List fetches the whole collection
func (r *Resource[T]) List(ctx context.Context) ([]T, error) {
	return r.ListAt(ctx, "")
}

// ListAt fetches a sub-collection such as "/my/measures" or "/resident/{id}"
func (r *Resource[T]) ListAt(ctx context.Context, subpath string) ([]T, error) {
	path := r.path
	if subpath != "" {
		path += "/" + strings.TrimLeft(subpath, "/")
	}
	data, err := r.client.do(r.ctx(ctx), http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	items := []T{}
	if isEmpty(data) {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s list: %w", path, err)
	}
	return items, nil
}

// Get fetches one record
func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	err := r.client.doJSON(r.ctx(ctx), http.MethodGet, r.itemPath(id), nil, &out)
	return out, err
}

// Create posts a new record and returns the server's copy
func (r *Resource[T]) Create(ctx context.Context, payload interface{}) (T, error) {
	var out T
	err := r.client.doJSON(r.ctx(ctx), http.MethodPost, r.path, payload, &out)
	return out, err
}

// Update sends payload with method (PATCH or PUT) and returns the server's copy
func (r *Resource[T]) Update(ctx context.Context, method, id string, payload interface{}) (T, error) {
	var out T
	err := r.client.doJSON(r.ctx(ctx), method, r.itemPath(id), payload, &out)
	return out, err
}

// PatchAt patches a sub-path of a record such as "/status". An empty
// subpath patches the record itself. The boolean is false when the backend
// replied without a body.
func (r *Resource[T]) PatchAt(ctx context.Context, id, subpath string, payload interface{}) (T, bool, error) {
	var out T
	path := r.itemPath(id)
	if subpath != "" {
		path += "/" + strings.TrimLeft(subpath, "/")
	}
	err := r.client.doJSON(r.ctx(ctx), http.MethodPatch, path, payload, &out)
	if errors.Is(err, ErrEmptyResponse) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	return out, true, nil
}

// Delete removes a record
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	_, err := r.client.do(r.ctx(ctx), http.MethodDelete, r.itemPath(id), nil)
	return err
}
