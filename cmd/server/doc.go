// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

/*
Package main is the entry point for the RescueNet location server.

People caught in a disaster share their live position with responders over
a websocket stream or the REST skin, and can raise an emergency that is
broadcast to every watcher of the global emergency topic.

# Application Architecture

	RootSupervisor ("rescuenet")
	├── DataSupervisor ("data-layer")
	│   ├── Expiry sweep (session TTL)
	│   └── Event bus mirror (optional)
	├── MessagingSupervisor ("messaging-layer")
	│   └── WebSocket Hub
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Component initialization order:

 1. Configuration: Koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog with JSON/console output modes
 3. Session store: BadgerDB or in-memory
 4. Topic registry and update dispatcher
 5. Event bus: Watermill over NATS JetStream or gochannel (optional)
 6. WebSocket Hub
 7. Chi router and HTTP server
 8. Supervisor Tree

# Configuration

Priority: Environment variables > Config file > Defaults

	# Server
	HTTP_PORT=8080
	ENVIRONMENT=production
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console

	# Location sessions
	LOCATION_LIVENESS_WINDOW=30s
	LOCATION_SESSION_TTL=24h
	LOCATION_EXPIRY_POLICY=inactivity   # or online_gated

	# Storage
	STORE_DRIVER=badger          # badger or memory
	STORE_PATH=/data/rescuenet/sessions

	# Emergency mirror
	EVENTBUS_ENABLED=true
	EVENTBUS_DRIVER=nats         # nats (build tag) or memory
	NATS_URL=nats://127.0.0.1:4222
	NATS_EMBEDDED=true

	# Security
	CORS_ORIGINS=https://relief.example.org
	WS_ALLOWED_ORIGINS=https://relief.example.org

# Build Tags

	go build ./cmd/server                 # memory event bus only
	go build -tags nats ./cmd/server      # NATS JetStream publisher and embedded server

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains, the
hub closes every client (marking their sessions offline), the event bus
flushes its queue, and the store is closed last.
*/
package main
