// Package config provides client configuration management.
//
// # Overview
//
// Configuration starts from built-in defaults, is overlaid with an optional
// YAML file named by RESIDENCIA_CONFIG, and finally with environment
// variables.
//
// # Backend
//
//	RESIDENCIA_API_URL="http://localhost:3000"
//	RESIDENCIA_TIMEOUT="15s"
//
// # Session
//
//	RESIDENCIA_SESSION_BACKEND="file"      # file, redis, memory
//	RESIDENCIA_SESSION_FILE="~/.config/residencia/session.json"
//	RESIDENCIA_REDIS_URL="redis://localhost:6379/0"
//	RESIDENCIA_REDIS_TTL="12h"
//
// Setting RESIDENCIA_REDIS_URL alone switches the backend to redis.
//
// # Google sign-in
//
//	RESIDENCIA_GOOGLE_CLIENT_ID="1234.apps.googleusercontent.com"
//
// # Observability
//
//	RESIDENCIA_LOG_LEVEL="info"            # debug, info, warn, error
//	RESIDENCIA_LOG_FORMAT="json"           # json, text
//	RESIDENCIA_METRICS_FILE="/var/lib/node_exporter/residencia.prom"
//	RESIDENCIA_OTEL_ENABLED="false"
//	RESIDENCIA_OTEL_ENDPOINT="localhost:4317"
//
// # YAML file
//
//	api:
//	  base_url: https://api.residencia.example
//	  timeout: 10s
//	session:
//	  backend: redis
//	  redis_url: redis://localhost:6379/0
//	policy:
//	  legacy_unowned: false
package config
