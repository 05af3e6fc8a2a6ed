// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

/*
Package api provides the HTTP layer for RescueNet.

The REST skin under /api/location is a thin set of handlers over the same
dispatcher operations the websocket stream uses, so validation and state
transitions are identical on both transports.

Routes:

	POST /api/location/start                  start or resume sharing (201)
	PUT  /api/location/{sessionId}            position update
	PUT  /api/location/{sessionId}/stop       stop sharing
	PUT  /api/location/{sessionId}/emergency  raise an emergency
	PUT  /api/location/{sessionId}/safe       resolve an emergency
	GET  /api/location/{sessionId}            current or last known location
	GET  /api/location/{sessionId}/history    recent points (?limit=N)
	GET  /api/location/active                 sharing sessions (?emergencyOnly=true)
	GET  /api/v1/health[/live|/ready]         probes
	GET  /metrics                             Prometheus
	GET  /ws                                  websocket upgrade

Every response uses the models.APIResponse envelope. Dispatcher errors map
to 400 VALIDATION_ERROR, 404 NOT_FOUND and 500 INTERNAL_ERROR; rate limit
rejections are 429 RATE_LIMIT_EXCEEDED.

Usage Example:

	handler := api.NewHandler(d, st, hub, bus, cfg)
	router := api.NewRouter(handler, cfg)
	srv := &http.Server{Addr: ":8080", Handler: router.SetupChi()}
*/
package api
