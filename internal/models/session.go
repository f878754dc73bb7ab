package models

import "time"

// SessionRecord identifies a live browser process so that independent
// invocations can rediscover and attach to it instead of launching a new
// one. Owned exclusively by the browser supervisor; persisted as JSON in
// the state directory.
type SessionRecord struct {
	// Endpoint is the DevTools websocket debugger URL.
	Endpoint  string    `json:"endpoint"`
	Port      int       `json:"port"`
	CreatedAt time.Time `json:"created_at"`
}

// ServiceStatus is the heartbeat record a long-running supervisor loop
// refreshes on a fixed interval so other processes can see whether the
// browser service is up and logged in.
type ServiceStatus struct {
	Running       bool      `json:"running"`
	BrowserAlive  bool      `json:"browser_alive"`
	Authenticated bool      `json:"authenticated"`
	Timestamp     time.Time `json:"timestamp"`
}
