// Package logtail reads the regard log file for the logs command.
//
// The logger writes JSON lines (see internal/logging). Read returns the
// last lines of the file, Parse decodes one line into an Entry and Format
// renders it for a terminal. Filter drops entries below a level.
package logtail
