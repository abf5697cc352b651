package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"meshview/config"
	"meshview/gpu"
	"meshview/loader"
	"meshview/material"
	"meshview/rendering/opengl"
	"meshview/server"
)

func main() {
	runtime.LockOSThread()

	var (
		configPath = flag.String("config", config.DefaultFilename, "Settings file")
		meshPath   = flag.String("mesh", "", "OBJ mesh to view (overrides assets.mesh)")
		mtlPath    = flag.String("mtl", "", "Material library (overrides assets.material_lib)")
		serve      = flag.Bool("serve", false, "Stream frame stats over websocket")
		wireframe  = flag.Bool("wireframe", true, "Start in wireframe mode")
	)
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mesh":
			settings.Assets.Mesh = *meshPath
		case "mtl":
			settings.Assets.MaterialLib = *mtlPath
		case "serve":
			settings.Server.Enabled = *serve
		case "wireframe":
			settings.Render.Wireframe = *wireframe
		}
	})
	if err := settings.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(settings.Log.Level)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	gpu.SetLogger(logger.With("component", "gpu"))

	if err := run(settings); err != nil {
		slog.Error("meshview failed", "error", err)
		os.Exit(1)
	}
}

func run(s config.Settings) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := loader.LoadOBJ(s.Assets.Mesh, s.Assets.MaterialLib)
	if err != nil {
		return err
	}

	viewer, err := opengl.NewViewer(s)
	if err != nil {
		return err
	}
	defer viewer.Terminate()

	// Textures and buffers need the context, so they are released before
	// Terminate runs.
	reg := material.NewRegistry()
	defer reg.Release()
	if err := material.LoadLibrary(reg, res.Library, opengl.TextureFactory(s.Assets.TextureDir)); err != nil {
		return errors.Wrap(err, "load materials")
	}

	mesh, err := gpu.NewMesh(viewer.Device(), &res.Mesh, reg)
	if err != nil {
		return errors.Wrap(err, "build mesh")
	}
	defer mesh.Release()

	if s.Server.Enabled {
		hub := server.NewHub(time.Duration(s.Server.UpdateIntervalMs) * time.Millisecond)
		go func() {
			if err := hub.Run(ctx, s.Server.Addr); err != nil {
				slog.Error("stats server stopped", "error", err)
			}
		}()
		summary := server.MeshSummary{
			Vertices: len(res.Mesh.Vertices),
			Indices:  res.Mesh.IndexCount(),
			Parts:    mesh.NumParts(),
		}
		viewer.OnFrame = func(fi opengl.FrameInfo) {
			hub.Publish(server.Snapshot{
				Frame:     fi.Frame,
				FPS:       fi.FPS,
				Draw:      fi.Draw,
				Wireframe: fi.Wireframe,
				Camera:    fi.Camera,
				Mesh:      summary,
			})
		}
	}

	fmt.Println("Controls:")
	fmt.Println("  ESC: Toggle mouse look")
	fmt.Println("  W/A/S/D: Move, U/B: Up/Down")
	fmt.Println("  F: Toggle wireframe")
	fmt.Println("  Q: Quit")

	if err := viewer.Run(ctx, mesh); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
