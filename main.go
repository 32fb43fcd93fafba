package main

import (
	"context"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"

	"github.com/rcanpahali/BirdNet/cmd"
	"github.com/rcanpahali/BirdNet/internal/buildinfo"
	"github.com/rcanpahali/BirdNet/internal/conf"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   = "dev"
	buildDate string
)

func main() {
	build := buildinfo.NewContext(version, buildDate)
	settings := &conf.Settings{}
	root := cmd.RootCommand(settings, build)

	err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(build.String()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	)
	cmd.Cleanup()
	if err != nil {
		os.Exit(1)
	}
}
