package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	saasAuth "github.com/MrEthical07/saasAuth"
	"github.com/go-chi/chi/v5"
)

var errInvalidBody = errors.New("invalid request body")

// action adapts an engine Action to net/http.
func (s *server) action(act saasAuth.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := s.decodeBody(w, r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, saasAuth.ErrorBody{
				Error:   true,
				Code:    http.StatusBadRequest,
				Reason:  "invalid_body",
				Message: "Request body could not be parsed.",
			})
			return
		}

		req := &saasAuth.Request{
			Body:      body,
			Params:    routeParams(r),
			Headers:   flattenHeaders(r.Header),
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
		}
		if id := IdentityFromContext(r.Context()); id != nil {
			req.User = id.User
			req.Session = id.Session
		}

		writeResponse(w, r, act(r.Context(), req))
	}
}

// decodeBody accepts JSON objects and urlencoded forms. An empty body yields
// an empty map.
func (s *server) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	body := map[string]any{}
	if r.Body == nil || r.Method == http.MethodGet {
		return body, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		r.Body = http.MaxBytesReader(w, r.Body, s.bodyLimit)
		if err := r.ParseForm(); err != nil {
			return nil, errInvalidBody
		}
		for k, v := range r.PostForm {
			if len(v) > 0 {
				body[k] = v[0]
			}
		}
		return body, nil
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, s.bodyLimit+1))
	if err != nil || int64(len(raw)) > s.bodyLimit {
		return nil, errInvalidBody
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return body, nil
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, errInvalidBody
	}
	return body, nil
}

func routeParams(r *http.Request) map[string]string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || len(rctx.URLParams.Keys) == 0 {
		return nil
	}
	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, k := range rctx.URLParams.Keys {
		params[k] = rctx.URLParams.Values[i]
	}
	return params
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[strings.ToLower(k)] = v[0]
		}
	}
	return out
}

func writeResponse(w http.ResponseWriter, r *http.Request, resp saasAuth.Response) {
	if resp.Redirect != "" {
		status := resp.Status
		if status < 300 || status > 399 {
			status = http.StatusFound
		}
		http.Redirect(w, r, resp.Redirect, status)
		return
	}
	if resp.Body == nil {
		w.WriteHeader(resp.Status)
		return
	}
	writeJSON(w, resp.Status, resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
