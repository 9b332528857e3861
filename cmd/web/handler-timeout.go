package main

import (
	"net/http"
	"time"
)

const timeoutBody = `<!doctype html>
<html lang="en">
<head><title>Timeout - CDMS</title></head>
<body>
<h1>Timeout</h1>
<p>The case management service did not respond in time.</p>
<p><a href="">Retry</a></p>
</body>
</html>
`

// timeoutHandler responds with a 503 Service Unavailable error when the handler does not meet the deadline.
func timeoutHandler(h http.Handler, serverTimeout time.Duration) http.Handler {
	// Shorter than the server's write timeout so that the timeout page reaches the client
	// before the connection is closed.
	httpHandlerTimeout := serverTimeout - 500*time.Millisecond //nolint:mnd // 500ms
	return http.TimeoutHandler(h, httpHandlerTimeout, timeoutBody)
}
