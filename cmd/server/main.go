package main

import (
	"log"
	"net/http"
	"os"

	"sub-words/internal/config"
	"sub-words/internal/server"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatal(err)
	}
	cfg := config.Load()

	var kv server.KeyValue
	if cfg.RedisURL != "" {
		store, err := server.NewRedisKV(cfg.RedisURL)
		if err != nil {
			log.Fatal(err)
		}
		kv = store
		log.Printf("using redis state store")
	} else {
		kv = server.NewMemoryKV()
		log.Printf("REDIS_URL not set, using in-memory state store")
	}

	addr := ":8080"
	if env := os.Getenv("PORT"); env != "" {
		addr = ":" + env
	}

	srv := server.New(kv, cfg)
	defer srv.Close()
	log.Printf("sub-words server listening on %s", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Fatal(err)
	}
}
