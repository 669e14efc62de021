package filter

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
)

// ResetParam is the query parameter that resets a filter when it equals the
// filter's name.
const ResetParam = "reset_filter"

// maxMultipartMemory caps the part of a multipart body held in memory.
const maxMultipartMemory = 10 << 20

// ErrMalformedBody is returned when a submission body cannot be read as form
// data.
var ErrMalformedBody = errors.New("malformed form body")

// Session is the per-user key/value store filter state persists in.
type Session interface {
	Get(key string) (map[string]any, bool)
	Set(key string, values map[string]any)
	Delete(key string)
	// MarkModified flags the session for saving at the end of the request.
	MarkModified()
}

// Request is the part of an inbound request a filter reads.
type Request interface {
	Method() string
	Query() url.Values
	// PostForm returns the submitted form data. An error wrapping
	// ErrMalformedBody means the body was not usable form data.
	PostForm() (url.Values, error)
	Session() Session
}

type httpRequest struct {
	r       *http.Request
	sess    Session
	parsed  bool
	post    url.Values
	postErr error
}

// HTTPRequest adapts r and its session to Request. The body of a POST is
// parsed on first use, as urlencoded or multipart form data.
func HTTPRequest(r *http.Request, s Session) Request {
	return &httpRequest{r: r, sess: s}
}

func (h *httpRequest) Method() string    { return h.r.Method }
func (h *httpRequest) Query() url.Values { return h.r.URL.Query() }
func (h *httpRequest) Session() Session  { return h.sess }

func (h *httpRequest) PostForm() (url.Values, error) {
	if !h.parsed {
		h.parsed = true
		h.post, h.postErr = parseBody(h.r)
	}
	return h.post, h.postErr
}

func parseBody(r *http.Request) (url.Values, error) {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		if r.ContentLength == 0 {
			return url.Values{}, nil
		}
		return nil, fmt.Errorf("%w: missing content type", ErrMalformedBody)
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil, fmt.Errorf("%w: content type %q: %v", ErrMalformedBody, ct, err)
	}
	switch mt {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported content type %q", ErrMalformedBody, mt)
	}
	if r.PostForm == nil {
		return url.Values{}, nil
	}
	return r.PostForm, nil
}
