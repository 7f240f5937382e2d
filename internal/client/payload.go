package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"
)

var ErrNestedFile = errors.New("file uploads must be top-level fields")

// File is an upload carried inside a draft, e.g. a vendor logo.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// MarshalJSON keeps raw bytes out of JSON bodies and logs.
func (f File) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"file_name":    f.Name,
		"content_type": f.ContentType,
		"size":         len(f.Data),
	})
}

// SubmitPayload sends a whole draft in one request. Payloads holding File values
// go out as multipart/form-data, everything else as JSON.
func (c *Client) SubmitPayload(ctx context.Context, method, path string, payload map[string]any) (json.RawMessage, error) {
	var (
		body        *bytes.Buffer
		contentType string
		err         error
	)

	if hasFiles(payload) {
		body, contentType, err = encodeMultipart(payload)
	} else {
		body = &bytes.Buffer{}
		contentType = "application/json"
		err = json.NewEncoder(body).Encode(payload)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	var out json.RawMessage
	err = c.do(ctx, request{
		method:      method,
		path:        path,
		body:        body,
		contentType: contentType,
		anonymous:   isAnonymousPath(path),
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// isAnonymousPath lists the endpoints reachable without a session.
func isAnonymousPath(path string) bool {
	switch strings.Trim(path, "/") {
	case "users/login", "users/register":
		return true
	}
	return false
}

func hasFiles(payload map[string]any) bool {
	for _, v := range payload {
		switch v.(type) {
		case File, *File, []File:
			return true
		}
	}
	return false
}

func containsFile(v any) bool {
	switch t := v.(type) {
	case File, *File, []File:
		return true
	case map[string]any:
		for _, inner := range t {
			if containsFile(inner) {
				return true
			}
		}
	case []any:
		for _, inner := range t {
			if containsFile(inner) {
				return true
			}
		}
	}
	return false
}

func encodeMultipart(payload map[string]any) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		var err error
		switch v := payload[key].(type) {
		case File:
			err = writeFile(w, key, v)
		case *File:
			if v != nil {
				err = writeFile(w, key, *v)
			}
		case []File:
			for _, f := range v {
				if err = writeFile(w, key, f); err != nil {
					break
				}
			}
		case string:
			err = w.WriteField(key, v)
		case nil:
		default:
			if containsFile(v) {
				return nil, "", fmt.Errorf("%w: %s", ErrNestedFile, key)
			}
			var encoded []byte
			encoded, err = json.Marshal(v)
			if err == nil {
				err = w.WriteField(key, string(encoded))
			}
		}
		if err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field string, f File) error {
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, f.Name))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(f.Data)
	return err
}
