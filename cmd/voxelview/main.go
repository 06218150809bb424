package main

import (
	"errors"
	"flag"
	"io/fs"
	"log"
	"runtime"

	"voxelcore/internal/config"

	"github.com/faiface/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	path := flag.String("config", "voxelview.yaml", "engine configuration file")
	flag.Parse()

	cfg, err := config.Load(*path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Printf("voxelview: %s not found, using defaults", *path)
		cfg = config.Default()
	case err != nil:
		log.Fatalf("voxelview: %v", err)
	}
	config.Apply(cfg)

	mainthread.Run(func() {
		if err := run(cfg); err != nil {
			log.Fatalf("voxelview: %v", err)
		}
	})
}
