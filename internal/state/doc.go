// Package state holds the regard application state and the store that owns
// it.
//
// # Overview
//
// A single State value describes everything the client shows: the
// logged-in patient, the active screen, calibration progress, the test in
// progress, completed results, statistics and transient notifications.
// Store is the only writer. The UI, the controller and the background
// poller all go through its methods.
//
// # Transitions
//
// Every mutator performs one transition, writes the full snapshot to a
// localstore.Storage under StorageKey, then calls each listener in
// registration order with its own copy of the new state:
//
//	controller/poller ──▶ store.SetTests(...) ──▶ persist ──▶ listeners ──▶ UI redraw
//
// Listeners run on the mutating goroutine once the store's lock is
// released, so a listener may read or mutate the store. A panicking
// listener is logged and skipped; later listeners still run.
//
// UpdateGazeData is the exception: gaze samples arrive at tracker rate and
// are recorded silently. FinishTest, UpdateCurrentTest and UpdateTestData
// are no-ops when no test is active.
//
// # Derived Fields
//
//   - IsAuthenticated is true iff Patient is non-nil
//   - IsCalibrated is true iff at least CalibrationTarget points are recorded
//   - TestData aliases CurrentTest and Tests aliases TestResults in every
//     State returned by the store
//
// # Persistence
//
// New reads the snapshot once and overlays it on the defaults key by key.
// Missing keys keep their defaults, as do keys that fail to decode.
// Storage errors are logged and never surface to callers. Reset restores
// the defaults and erases the snapshot.
//
// # Notifications
//
// AddNotification returns immediately; the entry is removed after
// NotificationTTL by a timer the store owns. DismissNotification removes it
// early. Reset and Close stop every pending timer. Notifications restored
// from storage keep their original deadline.
package state
