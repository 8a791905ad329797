// package ui implements the live status terminal UI.
//
// The watch view polls a running daemon's /status endpoint on an interval and
// renders the pipeline phase, per-kind counters, and last error. A manual
// cycle can be triggered from the keyboard.
package ui
