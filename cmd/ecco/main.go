package main

import (
	"ecco/cmd/handlers"
	"ecco/internal/logger"
)

func main() {
	logger.Init() // Initialize the logger
	handlers.Execute()
}
