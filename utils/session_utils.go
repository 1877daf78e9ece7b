package utils

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "session_id"

	FirstSourceHeader = "X-First-Source"
	FirstSourceCookie = "first_source"
)

// SessionIDFromRequest returns the tracking session id sent by the page,
// preferring the header over the cookie. Empty when neither is present.
func SessionIDFromRequest(c *gin.Context) string {
	if id := c.GetHeader(SessionHeader); id != "" {
		return id
	}
	id, err := c.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return id
}

// SetSessionID echoes the session id back in both the header and a
// browser-session cookie, so the tab keeps it until it is closed.
func SetSessionID(c *gin.Context, id string, secure bool) {
	c.Header(SessionHeader, id)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, id, 0, "/", "", secure, true)
}

// FirstSourceFromRequest returns the first-touch source the tab carries,
// header first. Header values are query-escaped like the cookie.
func FirstSourceFromRequest(c *gin.Context) string {
	if v := c.GetHeader(FirstSourceHeader); v != "" {
		source, err := url.QueryUnescape(v)
		if err != nil {
			return ""
		}
		return source
	}
	source, err := c.Cookie(FirstSourceCookie)
	if err != nil {
		return ""
	}
	return source
}

// SetFirstSource hands the first-touch source back to the tab next to the
// session id. Nothing is sent while the source is unknown.
func SetFirstSource(c *gin.Context, source string, secure bool) {
	if source == "" {
		return
	}
	c.Header(FirstSourceHeader, url.QueryEscape(source))
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(FirstSourceCookie, source, 0, "/", "", secure, true)
}
