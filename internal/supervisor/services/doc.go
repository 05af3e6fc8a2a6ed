// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

/*
Package services provides suture.Service wrappers for RescueNet components.

Each wrapper translates a component's lifecycle into suture's
Serve(ctx) error and names itself through fmt.Stringer for the event log.

# Available Services

HTTP Server (HTTPServerService):
  - ListenAndServe in a goroutine, Shutdown with a fresh bounded context

WebSocket Hub (WebSocketHubService):
  - delegates to Hub.RunWithContext; cancellation closes every client and
    marks their sharing sessions offline

Event Bus (EventBusService):
  - runs the emergency mirror queue, then closes the publisher and any
    embedded NATS server on shutdown

Expiry Sweep (ExpirySweepService):
  - periodic DeleteExpired against the session store, followed by value log
    GC when the store is BadgerDB

# Usage Example

	tree, _ := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(services.NewExpirySweepService(st, cfg.ExpiryPolicy(), cfg.Location.CleanupInterval))
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	err := tree.Serve(ctx)
*/
package services
