package api

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// Network describes how much to believe about the path a request took.
type Network struct {
	// TrustProxy honours X-Forwarded-For/-Proto/-Host from a fronting proxy.
	TrustProxy bool
	// PublicURL, when set, is an additional origin accepted for mutations.
	PublicURL string
}

// ClientIP is the address requests are rate limited by.
func (n Network) ClientIP(r *http.Request) string {
	if n.TrustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// selfOrigin is scheme://host of the request as the browser addressed it.
func (n Network) selfOrigin(r *http.Request) (scheme, host string) {
	scheme, host = "http", r.Host
	if r.TLS != nil {
		scheme = "https"
	}
	if n.TrustProxy {
		if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
			scheme = strings.ToLower(strings.TrimSpace(p))
		}
		if h := r.Header.Get("X-Forwarded-Host"); h != "" {
			host = strings.TrimSpace(h)
		}
	}
	return scheme, host
}

// SameOrigin checks Origin, falling back to Referer. A request carrying
// neither is allowed; non-browser clients send neither.
func (n Network) SameOrigin(r *http.Request) bool {
	src := r.Header.Get("Origin")
	if src == "" {
		src = r.Header.Get("Referer")
	}
	if src == "" {
		return true
	}
	u, err := url.Parse(src)
	if err != nil || u.Host == "" {
		return false
	}
	scheme, host := n.selfOrigin(r)
	if strings.EqualFold(u.Scheme, scheme) && strings.EqualFold(u.Host, host) {
		return true
	}
	if n.PublicURL != "" {
		if pub, err := url.Parse(n.PublicURL); err == nil && pub.Host != "" {
			return strings.EqualFold(u.Scheme, pub.Scheme) && strings.EqualFold(u.Host, pub.Host)
		}
	}
	return false
}

// StageURL is the address a stage display opens for room id.
func (n Network) StageURL(r *http.Request, id string) string {
	base := n.PublicURL
	if base == "" {
		scheme, host := n.selfOrigin(r)
		base = scheme + "://" + host
	}
	return base + "/?id=" + url.QueryEscape(id)
}
