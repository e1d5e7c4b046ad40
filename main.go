package main

import (
	"flag"
	"log"

	"strand/config"
	"strand/server"
)

func main() {
	cfgPath := flag.String("config", "", "path to config file (default: strand.yaml in . or /etc/strand)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	app := &server.App{}
	app.Initialize(cfg)
	if err := app.Run(); err != nil {
		log.Fatalf("run: %v", err)
	}
}
