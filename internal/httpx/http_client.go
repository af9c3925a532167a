// Package httpx holds the shared outbound HTTP client.
package httpx

import (
	"net/http"
	"time"
)

const defaultExternalHTTPTimeout = 30 * time.Second

var externalHTTPClient = &http.Client{
	Timeout: defaultExternalHTTPTimeout,
}

// ConfigureExternalHTTPClient sets the shared client's ceiling. Callers put
// tighter per-request deadlines on their contexts.
func ConfigureExternalHTTPClient(timeoutSeconds int) time.Duration {
	timeout := defaultExternalHTTPTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	externalHTTPClient.Timeout = timeout
	return timeout
}

func ExternalHTTPClient() *http.Client {
	return externalHTTPClient
}

// Do sends req on the shared client bounded by timeout.
func Do(req *http.Request, timeout time.Duration) (*http.Response, error) {
	if timeout <= 0 {
		return externalHTTPClient.Do(req)
	}
	ctx := req.Context()
	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > timeout {
		c := *externalHTTPClient
		c.Timeout = timeout
		return c.Do(req)
	}
	return externalHTTPClient.Do(req)
}
