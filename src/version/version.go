package version

// Version is the hubkeep release version. Overridden at build time via
// -ldflags "-X hubkeep/src/version.Version=...".
var Version = "0.3.0-dev"
