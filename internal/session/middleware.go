package session

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alfredjeanlab/dynfilter/internal/idgen"
)

// Options configures Middleware.
type Options struct {
	CookieName string        // default "dynfilter_session"
	TTL        time.Duration // default 24h
	Secure     bool          // set the cookie's Secure attribute
}

func (o Options) withDefaults() Options {
	if o.CookieName == "" {
		o.CookieName = "dynfilter_session"
	}
	if o.TTL <= 0 {
		o.TTL = 24 * time.Hour
	}
	return o
}

// Middleware loads the caller's session from backend before next runs and
// saves it, if modified, before the first byte of the response is written.
// Requests without a usable cookie get a fresh session id.
func Middleware(backend Backend, opts Options, next http.Handler) http.Handler {
	opts = opts.withDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := load(r, backend, opts)
		if err != nil {
			slog.Error("loading session", "error", err)
			http.Error(w, "session unavailable", http.StatusInternalServerError)
			return
		}

		sw := &saveWriter{ResponseWriter: w}
		sw.save = func() {
			if !sess.Modified() {
				return
			}
			if err := backend.Save(r.Context(), sess.ID(), sess.Data(), opts.TTL); err != nil {
				slog.Warn("saving session", "session", sess.ID(), "error", err)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     opts.CookieName,
				Value:    sess.ID(),
				Path:     "/",
				MaxAge:   int(opts.TTL / time.Second),
				HttpOnly: true,
				Secure:   opts.Secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		next.ServeHTTP(sw, r.WithContext(WithSession(r.Context(), sess)))
		sw.once.Do(sw.save)
	})
}

func load(r *http.Request, backend Backend, opts Options) (*Session, error) {
	if c, err := r.Cookie(opts.CookieName); err == nil && idgen.ValidSessionID(c.Value) {
		data, err := backend.Load(r.Context(), c.Value)
		switch {
		case err == nil:
			return New(c.Value, data), nil
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}
	id, err := idgen.NewSessionID()
	if err != nil {
		return nil, err
	}
	return newEmpty(id), nil
}

// saveWriter runs save once, just before the response header goes out.
type saveWriter struct {
	http.ResponseWriter
	save func()
	once sync.Once
}

func (w *saveWriter) WriteHeader(code int) {
	w.once.Do(w.save)
	w.ResponseWriter.WriteHeader(code)
}

func (w *saveWriter) Write(b []byte) (int, error) {
	w.once.Do(w.save)
	return w.ResponseWriter.Write(b)
}

func (w *saveWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
