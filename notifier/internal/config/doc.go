// Package config loads and watches the notifier configuration file.
//
// Top-level types:
//   - Config{Notifier}: full config tree parsed from YAML
//   - Source: type (socketio|websocket|kafka|redis), endpoint, path,
//     namespace, auth, tls, reconnect, kafka, redis
//   - Presenter: type (console|slack|teams|http|mail|telegram) plus per-type fields
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none); Key(), Token() and
//     Password() resolve secrets from environment variables
//   - HistoryConfig, HTTPConfig, LogConfig
//
// Load(path) reads the YAML file, applies defaults (socket.io on
// http://localhost:5000, reconnect 1s..5s, console presenter, history
// 100 entries / 24h), then validates required fields and enums. Default()
// returns the same defaults without a file.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config.
package config
