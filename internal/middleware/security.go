package middleware

import (
	"net/textproto"
	"strings"

	"github.com/labstack/echo/v4"
)

// hopByHopHeaders are headers that should not be forwarded by proxies.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// SecurityHeaders returns an Echo middleware that adds security headers
// and strips hop-by-hop headers from inbound requests.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Strip hop-by-hop headers from the incoming request. Headers
			// named by the Connection header go first, before Connection
			// itself is deleted.
			header := c.Request().Header
			for _, v := range header.Values("Connection") {
				for _, name := range strings.Split(v, ",") {
					if name = textproto.TrimString(name); name != "" {
						header.Del(name)
					}
				}
			}
			for _, h := range hopByHopHeaders {
				header.Del(h)
			}

			err := next(c)

			// Add security headers to response
			c.Response().Header().Set("X-Content-Type-Options", "nosniff")
			c.Response().Header().Set("X-Frame-Options", "DENY")

			return err
		}
	}
}
