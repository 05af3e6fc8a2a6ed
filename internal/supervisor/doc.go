// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

/*
Package supervisor provides process supervision for RescueNet using suture v4.

Long-running services are grouped into three layers so a crash restarts only
its own layer:

	RootSupervisor ("rescuenet")
	├── DataSupervisor ("data-layer")
	│   ├── ExpirySweepService
	│   └── EventBusService (if eventbus.enabled)
	├── MessagingSupervisor ("messaging-layer")
	│   └── WebSocketHubService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Supervisor events (restarts, backoff, timeouts) are logged through
sutureslog on the slog bridge from internal/logging.

Usage Example:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}

Services that fail to stop within TreeConfig.ShutdownTimeout are listed by
UnstoppedServiceReport.
*/
package supervisor
