package client

// Version is the livesync client version. Overridden at build time with
// -ldflags "-X github.com/vango-dev/livesync/pkg/client.Version=...".
var Version = "0.3.0"
