package main

import (
	"log"

	"camnet/internal/app"
)

func main() {
	application, err := app.NewApp()
	if err != nil {
		log.Fatalf("Failed to configure server: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
