// Package httpstore implements remote.Store against the household REST API.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	pkgerrors "github.com/pedroasavelar91/nexus-familiar/pkg/errors"
	"github.com/pedroasavelar91/nexus-familiar/pkg/types"
)

const tablesPath = "/api/v1/tables"

// MessageUnknownTable is the error message the API uses for unknown tables.
const MessageUnknownTable = "unknown table"

type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

var _ remote.Store = (*Client)(nil)

// New builds a client for baseURL authenticating with a bearer token.
func New(baseURL, token string, timeout time.Duration) (*Client, error) {
	return NewWithHTTPClient(baseURL, token, &http.Client{Timeout: timeout})
}

func NewWithHTTPClient(baseURL, token string, hc *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("base url required")
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: base, token: token, http: hc}, nil
}

func (c *Client) Select(ctx context.Context, table string, query remote.Query) ([]remote.Row, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	var rows []remote.Row
	if err := c.do(ctx, http.MethodGet, c.tableURL(table, "", EncodeQuery(query)), nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) Insert(ctx context.Context, table string, row remote.Row) (remote.Row, error) {
	var created remote.Row
	if err := c.do(ctx, http.MethodPost, c.tableURL(table, "", nil), row, &created); err != nil {
		return nil, err
	}
	return created, nil
}

func (c *Client) Update(ctx context.Context, table, id string, patch remote.Row) error {
	return c.do(ctx, http.MethodPatch, c.tableURL(table, id, nil), patch, nil)
}

func (c *Client) Delete(ctx context.Context, table, id string) error {
	return c.do(ctx, http.MethodDelete, c.tableURL(table, id, nil), nil, nil)
}

func (c *Client) DeleteMany(ctx context.Context, table string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	values := EncodeQuery(remote.Where().In("id", ids))
	return c.do(ctx, http.MethodDelete, c.tableURL(table, "", values), nil, nil)
}

func (c *Client) tableURL(table, id string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + tablesPath + "/" + url.PathEscape(table)
	if id != "" {
		u.Path += "/" + url.PathEscape(id)
	}
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, target string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode body: %v", remote.ErrInvalidQuery, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remote store unreachable")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read response")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, payload)
	}
	if out == nil || len(payload) == 0 {
		return nil
	}

	envelope := types.RawSuccessEnvelope[json.RawMessage]{}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response envelope")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response data")
	}
	return nil
}

func decodeError(status int, payload []byte) error {
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Error.Code == "" {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("remote store returned %d", status))
	}

	typed := pkgerrors.New(pkgerrors.ParseCode(envelope.Error.Code), envelope.Error.Message).
		WithDetails(envelope.Error.Details)

	switch typed.Code() {
	case pkgerrors.CodeNotFound:
		if envelope.Error.Message == MessageUnknownTable {
			return fmt.Errorf("%w: %w", remote.ErrUnknownTable, typed)
		}
		return fmt.Errorf("%w: %w", remote.ErrNotFound, typed)
	case pkgerrors.CodeConflict:
		return fmt.Errorf("%w: %w", remote.ErrConflict, typed)
	case pkgerrors.CodeValidation:
		return fmt.Errorf("%w: %w", remote.ErrInvalidQuery, typed)
	}
	return typed
}
