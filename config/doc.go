// Package config persists the sync settings and scan tuning as YAML.
//
// The file lives at $XDG_CONFIG_HOME/contactsaver/config.yaml unless a path
// is given. [Store.Load] overlays the CONTACTSAVER_* environment variables and
// validates; [Store.LoadFile] returns the file as written, which is what
// settings edits should start from so environment values are never persisted.
// [Store.SetLastSync] rewrites only the last-sync timestamp. [Store.Watch]
// delivers settled changes so a running daemon can reschedule.
package config
