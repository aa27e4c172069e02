package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/restnotify/restnotify/internal/config"
	"github.com/restnotify/restnotify/internal/payload"
)

const (
	contentTypeForm = "application/x-www-form-urlencoded"
	contentTypeJSON = "application/json"
	userAgent       = "restnotify/1"
)

// newRequest encodes fields according to the notifier's method.
//
//	POST      form body, static params in the query
//	POST_JSON JSON body, static params in the query
//	GET       static params and fields in the query, fields winning
func (r *Rest) newRequest(ctx context.Context, fields payload.Fields) (*http.Request, error) {
	u, err := url.Parse(r.resource)
	if err != nil {
		return nil, fmt.Errorf("parse resource: %w", err)
	}

	var (
		method      = http.MethodGet
		body        io.Reader
		contentType string
		query       = url.Values{}
	)
	for k, v := range r.params {
		query.Set(k, v)
	}

	switch r.method {
	case config.MethodPost:
		method = http.MethodPost
		body = strings.NewReader(encodeValues(url.Values{}, fields).Encode())
		contentType = contentTypeForm
	case config.MethodPostJSON:
		b, err := encodeJSON(fields)
		if err != nil {
			return nil, err
		}
		method = http.MethodPost
		body = bytes.NewReader(b)
		contentType = contentTypeJSON
	default:
		for k := range fields {
			query.Del(k)
		}
		encodeValues(query, fields)
	}

	if len(query) > 0 {
		merged := u.Query()
		for k, vs := range query {
			merged[k] = vs
		}
		u.RawQuery = merged.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	r.auth.apply(req)
	return req, nil
}

func encodeJSON(fields payload.Fields) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fields); err != nil {
		return nil, fmt.Errorf("encode json body: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// encodeValues adds fields to vals in key order. Sequences become repeated
// keys; everything else goes through formValue.
func encodeValues(vals url.Values, fields payload.Fields) url.Values {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if items, ok := fields[k].([]any); ok {
			for _, item := range items {
				vals.Add(k, formValue(item))
			}
			continue
		}
		vals.Add(k, formValue(fields[k]))
	}
	return vals
}

// formValue renders a resolved value as a form or query string value.
func formValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}
