package main

import (
	"os"

	"sjsage522/propertyworker/cmd"
	"sjsage522/propertyworker/logger"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}
