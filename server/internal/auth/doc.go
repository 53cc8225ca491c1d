// Package auth provides API-key middleware for the interrupt-meter HTTP API.
//
// APIKey(mode, header, key) wraps a handler so that requests must carry key
// in the named header. When mode != "apikey" or key == "", every request
// passes through (local development with auth disabled). A missing or
// wrong key is answered with 401 and a JSON error body.
package auth
