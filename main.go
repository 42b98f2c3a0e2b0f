package main

import (
	"github.com/SitePen/webrtc-blog/cmd"
	"github.com/SitePen/webrtc-blog/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
