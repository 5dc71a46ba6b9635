package main

import (
	"github.com/Paintersrp/forkrun/internal/cli"
	"github.com/Paintersrp/forkrun/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
