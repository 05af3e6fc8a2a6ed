// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

/*
Package websocket is the streaming transport for live location sharing.

Each connection is a Client that can publish its own location session and
watch any number of others. Inbound frames are decoded and handed to the
dispatcher; outbound fan-out arrives through the topic registry, which calls
Client.Deliver.

Key Components:

  - Hub: tracks connected clients and runs disconnect cleanup
  - Client: one connection with read and write goroutines
  - Message: the {"type": ..., "data": ...} frame envelope

Frames:

	→ {"type": "location:start", "data": {"latitude": 6.9, "longitude": 79.8, "userName": "Nimal"}}
	← {"type": "location:started", "data": {"sessionId": "…", "session": {…}, "message": "Location sharing started"}}
	→ {"type": "watch:emergencies"}
	← {"type": "emergency:new", "data": {"sessionId": "…", "emergencyType": "flood", …}}

Inbound types: location:start, location:update, location:emergency,
location:safe, location:stop, watch:location, unwatch:location,
watch:emergencies, unwatch:emergencies and ping. A rejected frame (bad JSON,
unknown type, failed validation, unknown session, rate limit) produces one
location:error back to the sender only.

Connection Lifecycle:

 1. The api package upgrades the request and calls NewClient
 2. Hub.Attach registers the client and Start launches its pumps. Attach
    fails once the hub has stopped.
 3. readPump exits on close, read error or pong timeout and sends the
    client on Hub.Unregister, unless the hub has already stopped
 4. The hub drops the client from its map; a background cleanup removes
    every subscription the client held, then asks the dispatcher to mark
    its published session offline, exactly once. Shutdown waits for
    pending cleanups.
 5. The send channel is closed and writePump sends a close frame

Backpressure:

Deliver never blocks. When a client's send buffer is full the delivery is
dropped and counted; other subscribers are unaffected. Inbound frames pass
through a per-client token bucket (golang.org/x/time/rate).

Configuration:

  - WriteWait: 10 seconds per write
  - PongWait: 60 seconds without a pong closes the connection
  - ping period: 9/10 of PongWait
  - MaxMessageSize: 64 KiB inbound
  - SendBuffer: 256 queued outbound messages
*/
package websocket
