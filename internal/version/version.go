package version

// Version is the current build version.
// It can be overridden at build time using:
//
//	go build -ldflags="-X 'github.com/SitePen/webrtc-blog/internal/version.Version=v1.0.0'"
var Version = "dev"
