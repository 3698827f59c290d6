// Package ui provides the terminal user interface for regard.
//
// The interface is a Bubble Tea program. Model renders the current
// state.State and forwards user intent to an Actions implementation,
// normally the app controller. The UI never talks to the backend itself.
//
// # Event Flow
//
//  1. Run subscribes to the state store and starts the program
//  2. Store changes are coalesced into a one-slot channel and delivered as
//     messages, so a burst of gaze updates produces a single redraw
//  3. Key presses call Actions; blocking calls (login, loading, exports)
//     run as commands off the event loop
//  4. Context cancellation stops the program
//
// # Screens
//
//   - Home: presentation when signed out, quick actions when signed in
//   - Sign in and Register: text input forms
//   - Calibration: a field with the next target to look at
//   - Test: live duration, tracking and fixation figures
//   - Results: stored tests with a detail modal and PDF export
//   - Statistics: result distribution and averages
//
// Press ? in the application for the full key map.
package ui
