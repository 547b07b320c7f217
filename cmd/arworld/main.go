// Command arworld runs an AR world described by a scene file against a
// simulated device or a remote WebSocket client.
package main

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/plus3/arworlds/anchor"
	"github.com/plus3/arworlds/coaching"
	"github.com/plus3/arworlds/component"
	"github.com/plus3/arworlds/content"
	"github.com/plus3/arworlds/ecs"
	"github.com/plus3/arworlds/ecs/debugui"
	debugui_ebiten "github.com/plus3/arworlds/ecs/debugui/ebiten"
	"github.com/plus3/arworlds/graphics"
	"github.com/plus3/arworlds/graphics/ebitensurface"
	"github.com/plus3/arworlds/imagecapture"
	"github.com/plus3/arworlds/imagetracking"
	"github.com/plus3/arworlds/internal/config"
	"github.com/plus3/arworlds/internal/logging"
	"github.com/plus3/arworlds/loader"
	"github.com/plus3/arworlds/modelscaling"
	"github.com/plus3/arworlds/scene"
	"github.com/plus3/arworlds/xr"
	"github.com/plus3/arworlds/xr/simxr"
	"github.com/plus3/arworlds/xr/wsxr"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

//go:embed scenes/demo.yaml
var demoScene []byte

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "arworld:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	scenePath := flag.String("scene", "", "Scene YAML file. The built-in demo scene is used when empty.")
	duration := flag.Duration("duration", 0, "Stop after this long. Zero runs until interrupted.")
	capture := flag.Bool("capture", true, "Enable the image capture system (needs hit-test and camera-access).")
	flag.StringVar(&cfg.Gateway, "gateway", cfg.Gateway, "Content gateway base URL.")
	flag.StringVar(&cfg.Device, "device", cfg.Device, "XR device: sim or ws.")
	flag.StringVar(&cfg.DeviceAddr, "addr", cfg.DeviceAddr, "Listen address of the ws device.")
	flag.StringVar(&cfg.Surface, "surface", cfg.Surface, "Graphics surface: headless or ebiten.")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level.")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: pretty or json.")
	flag.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address of the content cache.")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		return eris.Wrap(err, "invalid flags")
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	gateway, err := content.NewGateway(cfg.Gateway,
		content.WithTimeout(cfg.FetchTimeout),
		content.WithGatewayLogger(log))
	if err != nil {
		return err
	}
	var fetcher content.Fetcher = gateway
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		fetcher = content.NewRedisCache(client, gateway,
			content.WithTTL(cfg.CacheTTL),
			content.WithCacheLogger(log))
	}

	device, shutdown, err := newDevice(cfg, log)
	if err != nil {
		return err
	}
	defer shutdown()

	session := xr.NewSession(device, xr.WithLogger(log))
	if cfg.Device == config.DeviceWebSocket {
		log.Info().Str("addr", cfg.DeviceAddr).Msg("waiting for an xr client on /xr")
	}
	supported, err := session.IsSupported(ctx)
	if err != nil {
		return err
	}
	if !supported {
		return eris.New("immersive AR is not supported on this device")
	}

	world := ecs.NewWorld(ecs.WithLogger(log), ecs.WithContext(ctx))
	defer world.Close()
	component.Register(world.Storage().Registry())

	sceneData, err := readScene(*scenePath)
	if err != nil {
		return err
	}
	sc, err := scene.Load(bytes.NewReader(sceneData))
	if err != nil {
		return err
	}
	names, err := sc.Build(world)
	if err != nil {
		return eris.Wrap(err, "failed to build scene")
	}
	log.Info().Int("entities", len(sc.Entities)).Int("named", len(names)).Msg("scene loaded")

	surface, overlay := newSurface(cfg)
	retry := loader.ExponentialRetry(cfg.RetryInitial, cfg.RetryMax)

	world.AddSystem(session)
	world.AddSystem(anchor.NewCreationSystem(session, anchor.WithLogger(log), anchor.WithRetry(retry)))
	world.AddSystem(imagetracking.New(session, fetcher, imagetracking.WithLogger(log), imagetracking.WithRetry(retry)))
	world.AddSystem(anchor.NewTransformSystem())
	world.AddSystem(coaching.New(session, coaching.LogPresenter{Log: log}, gateway, log))
	if overlay {
		world.AddSystem(&keyboardInput{})
	}
	world.AddSystem(modelscaling.New(modelscaling.LogPresenter{Log: log}, log))
	if *capture {
		world.AddSystem(imagecapture.New(session, imagecapture.LogPresenter{Log: log}, log))
	}
	world.AddSystem(graphics.NewSystem(surface, fetcher, graphics.WithLogger(log), graphics.WithRetry(retry)))
	if overlay {
		debugui.SpawnDebugUI(world)
		world.AddSystem(&debugui.ImguiSystem{})
	}

	ecs.Subscribe(world.Events(), func(e imagecapture.ImageAnchorCaptured) {
		log.Info().Int("bytes", len(e.ImageBytes)).Float64("width", e.PhysicalWidth).Msg("image anchor captured")
	})
	ecs.Subscribe(world.Events(), func(e modelscaling.ScaleChanged) {
		log.Debug().Uint32("entity", uint32(e.Entity)).Float64("scale", e.Scale).Msg("model scaled")
	})

	go func() {
		if err := session.Start(ctx); err != nil {
			log.Error().Err(err).Msg("failed to start xr session")
			stop()
			return
		}
		if sim, ok := device.(*simxr.Device); ok {
			simulate(ctx, sim, cfg.FrameInterval())
		}
	}()

	err = graphics.Start(ctx, world, surface)
	if endErr := session.End(); endErr != nil && !eris.Is(endErr, xr.ErrSessionNotStarted) {
		log.Warn().Err(endErr).Msg("failed to end xr session")
	}
	if err != nil {
		return err
	}
	log.Info().Msg("bye")
	return nil
}

func readScene(path string) ([]byte, error) {
	if path == "" {
		return demoScene, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "failed to open scene")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, eris.Wrap(err, "failed to read scene")
	}
	return data, nil
}

func newDevice(cfg config.Config, log zerolog.Logger) (xr.Device, func(), error) {
	if cfg.Device == config.DeviceSim {
		return simxr.New(), func() {}, nil
	}

	srv := wsxr.NewServer(wsxr.WithLogger(log))
	mux := http.NewServeMux()
	mux.Handle("/xr", srv)
	httpServer := &http.Server{Addr: cfg.DeviceAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("xr device server stopped")
		}
	}()

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctx)
	}
	return srv, shutdown, nil
}

// newSurface returns the configured surface and whether it shows the debug UI.
func newSurface(cfg config.Config) (graphics.Surface, bool) {
	if cfg.Surface == config.SurfaceEbiten {
		backend := debugui_ebiten.NewImguiBackend()
		return ebitensurface.New("arworld", 1280, 720, ebitensurface.WithOverlay(backend)), true
	}
	return graphics.NewHeadlessSurface(cfg.FrameInterval()), false
}
