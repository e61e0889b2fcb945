package autonoma

// Version is the release version, overridden at build time with
// -ldflags "-X github.com/autonoma-fleet/autonoma.Version=...".
var Version = "0.1.0-dev"
