// Package state keeps per-session conversation data for Telegram bots.
//
// A Registry serializes access to one session at a time and persists values
// through a Store (in memory or Redis). It knows nothing about what T holds.
package state
