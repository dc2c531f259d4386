package main

import (
	"log"

	"github.com/joho/godotenv"

	"idlegate/internal/config"
	"idlegate/internal/server"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("📄 Loaded .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	s, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	s.Run()
}
