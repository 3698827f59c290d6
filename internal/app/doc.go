// Package app is the composition root of regard.
//
// # Overview
//
// Bootstrap loads the configuration, builds the logger and opens the SQLite
// storage, the backend client and the state store. Run starts the TUI on
// top of those; the scripted subcommands in cmd/regard use the same
// Runtime without the UI.
//
// # Components
//
//   - app.go: Bootstrap, Run and the gaze feed follower
//   - controller.go: the user flows (sign in, calibration, test, results,
//     exports, predictions) against the backend and the store
//   - poller.go: background refresh of tests and statistics
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       ├─────> Bootstrap()     config, logger, storage, client, store
//	       ├─────> sync()          initial refresh when signed in
//	       ├─────> StartPoller()   periodic refresh with backoff
//	       ├─────> FollowGaze()    tracker samples into the running test
//	       └─────> ui.Run()        TUI (blocks)
//
// # Error Handling
//
// Bootstrap failures are returned. Everything after that is recoverable:
// the controller turns failures into error notifications and returns them,
// and the poller logs them and backs off.
package app
