// main.go

package main

import (
	"github.com/vision-edge/mpsetup/cmd"
	"github.com/vision-edge/mpsetup/pkg/logger"
)

func main() {
	logger.InitializeWithFallback()
	cmd.Execute()
}
