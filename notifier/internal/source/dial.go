package source

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zonewatch/zonewatch/notifier/internal/config"
)

const handshakeTimeout = 10 * time.Second

// buildTLSConfig constructs the TLS settings for the source's auth and TLS
// options. It returns nil when neither requires TLS customisation.
func buildTLSConfig(src config.Source) (*tls.Config, error) {
	if !src.TLS.InsecureSkipVerify && src.Auth.Mode != "mtls" {
		return nil, nil
	}
	tlsCfg := &tls.Config{
		InsecureSkipVerify: src.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if src.Auth.Mode == "mtls" {
		cert, err := tls.LoadX509KeyPair(src.Auth.CertFile, src.Auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}

		if src.Auth.CAFile != "" {
			caPEM, err := os.ReadFile(src.Auth.CAFile)
			if err != nil {
				return nil, fmt.Errorf("read ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no valid certs found in ca file %q", src.Auth.CAFile)
			}
			tlsCfg.RootCAs = pool
		}
	}
	return tlsCfg, nil
}

// handshakeHeader returns the HTTP headers sent with the WebSocket upgrade.
func handshakeHeader(a config.AuthConfig) http.Header {
	h := http.Header{}
	switch a.Mode {
	case "apikey":
		h.Set(a.EffectiveHeader(), a.Key())
	case "bearer":
		h.Set("Authorization", "Bearer "+a.Token())
	case "basic":
		cred := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password()))
		h.Set("Authorization", "Basic "+cred)
	}
	return h
}

// connectAuth returns the Socket.IO CONNECT auth payload, if any.
func connectAuth(a config.AuthConfig) json.RawMessage {
	var payload map[string]string
	switch a.Mode {
	case "apikey":
		payload = map[string]string{"key": a.Key()}
	case "bearer":
		payload = map[string]string{"token": a.Token()}
	default:
		return nil
	}
	b, _ := json.Marshal(payload)
	return b
}

// newDialer returns a WebSocket dialer for src.
func newDialer(src config.Source) (*websocket.Dialer, error) {
	tlsCfg, err := buildTLSConfig(src)
	if err != nil {
		return nil, err
	}
	return &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
		TLSClientConfig:  tlsCfg,
	}, nil
}
