// Package auth provides API key middleware for the notifier status API.
//
// APIKey(mode, header, key) wraps an http.Handler. When mode != "apikey" or
// key == "", every request passes through (local development with auth
// disabled). Otherwise a missing or wrong key is answered with 401.
package auth
