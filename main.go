package main

import (
	"os"

	"github.com/diyapandey-1623/meme-ip-vault/cmd"
	"github.com/diyapandey-1623/meme-ip-vault/handler"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

func main() {
	err := cmd.Execute(handler.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GitBranch: GitBranch,
	})
	if err != nil {
		os.Exit(1)
	}
}
