// Package config loads the server configuration from config.yaml.
//
// Config fields:
//   - server.http_port          port for the REST API, /metrics and /ws/stream (default 8084)
//   - server.auth.mode          "apikey" or "none"
//   - server.auth.key_env       environment variable holding the expected API key
//   - server.auth.header        HTTP header name (default "x-api-key")
//   - server.broadcast_interval dashboard push period (default 30s)
//   - server.timezone           IANA zone deciding "today" for streaks (default UTC)
//   - storage.backend           "sqlite" or "memory" (default sqlite)
//   - storage.path              SQLite file (default meter.db)
//   - categories                category -> tracker states table
//   - seed.*                    dates written into an empty store
//   - alerts.cooldown           minimum gap between two firings of one alert (default 15m)
//   - alerts.webhooks[]         {type: slack|teams|http, url_env: VAR}
//
// Load(path) applies defaults before unmarshalling, then validates. The
// categories table is validated into a meter.StateMap here, so a bad table
// never reaches a running service. LoadEnv reads an optional .env file.
package config
