package cookiemedium

import (
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jrsteele09/reconfile-dashboard/token"
)

var _ token.Medium = (*Jar)(nil)

// Jar stores token entries as browser cookies. Reads come from the request and
// see any entry written earlier by the same Jar.
type Jar struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	r       *http.Request
	secure  bool
	now     func() time.Time
	pending map[string]*http.Cookie
}

type Option func(*Jar)

// WithSecure forces the Secure flag on every cookie written
func WithSecure(secure bool) Option {
	return func(j *Jar) {
		j.secure = j.secure || secure
	}
}

// WithNowTime overrides the clock used to compute Max-Age
func WithNowTime(now func() time.Time) Option {
	return func(j *Jar) {
		j.now = now
	}
}

func New(w http.ResponseWriter, r *http.Request, opts ...Option) *Jar {
	j := &Jar{
		w:       w,
		r:       r,
		secure:  IsHTTPS(r),
		now:     time.Now,
		pending: make(map[string]*http.Cookie),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *Jar) Set(name, value string, expires time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	maxAge := int(expires.Sub(j.now()) / time.Second)
	if maxAge <= 0 {
		maxAge = -1
	}
	j.write(&http.Cookie{
		Name:     name,
		Value:    url.QueryEscape(value),
		Path:     "/",
		Expires:  expires.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (j *Jar) Get(name string) (*string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if c, ok := j.pending[name]; ok {
		if c.MaxAge < 0 {
			return nil, nil
		}
		return decode(c.Value)
	}

	c, err := j.r.Cookie(name)
	if errors.Is(err, http.ErrNoCookie) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(c.Value)
}

func (j *Jar) Remove(name string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.write(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (j *Jar) write(c *http.Cookie) {
	j.pending[c.Name] = c
	http.SetCookie(j.w, c)
}

func decode(raw string) (*string, error) {
	v, err := url.QueryUnescape(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// IsHTTPS reports whether the request reached us over TLS, directly or through a proxy
func IsHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return r.Header.Get("X-Forwarded-Proto") == "https"
}
