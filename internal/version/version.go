package version

// Version is set at build time: -ldflags "-X mcsweep/internal/version.Version=v1.2.3"
var Version = "dev"
