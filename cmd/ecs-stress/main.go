package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/arworlds/anchor"
	"github.com/plus3/arworlds/component"
	"github.com/plus3/arworlds/ecs"
	"github.com/plus3/arworlds/internal/logging"
	"github.com/plus3/arworlds/xr"
	"github.com/plus3/arworlds/xr/simxr"
	"github.com/rs/zerolog"
)

func main() {
	duration := flag.Duration("duration", 10*time.Second, "The total duration the test should run for.")
	anchorCount := flag.Int("anchors", 200, "The number of device-tracked anchors.")
	childCount := flag.Int("children", 10000, "The number of entities anchored to them.")
	loseRate := flag.Float64("lose-rate", 0.01, "Probability an anchor loses tracking on a frame.")
	gcPauseMetrics := flag.Bool("gc-pause-metrics", false, "Enable detailed GC pause metrics in the report.")
	flag.Parse()

	log, err := logging.New(logging.Options{Level: "info"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	report, err := stress(log, *duration, *anchorCount, *childCount, *loseRate)
	if err != nil {
		log.Fatal().Err(err).Msg("stress test failed")
	}
	report.GCPauseMetrics = *gcPauseMetrics

	// Generate Report to Console
	fmt.Println("\n\n--- Stress Test Report ---")
	if err := report.Generate(os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("failed to generate report")
	}
	fmt.Println("--- End of Report ---")
}

func stress(log zerolog.Logger, duration time.Duration, anchorCount, childCount int, loseRate float64) (*Report, error) {
	log.Info().Msg("starting anchor stress test")

	// 1. Setup the world, a simulated device and the anchor systems
	device := simxr.New()
	session := xr.NewSession(device, xr.WithLogger(log))

	world := ecs.NewWorld(ecs.WithLogger(log))
	defer world.Close()
	storage := world.Storage()
	component.Register(storage.Registry())

	world.AddSystem(session)
	world.AddSystem(anchor.NewCreationSystem(session, anchor.WithLogger(log)))
	world.AddSystem(anchor.NewTransformSystem())

	// 2. Populate the world
	log.Info().Int("anchors", anchorCount).Int("children", childCount).Msg("populating world")
	rng := rand.New(rand.NewSource(1))
	anchors := make([]ecs.EntityId, anchorCount)
	for i := range anchors {
		anchors[i] = storage.Spawn(
			component.IsAnchor{},
			component.NewPosition(rng.Float64()*4-2, 0, -rng.Float64()*4),
			component.NewOrientation(mgl64.QuatIdent()),
		)
	}
	for i := 0; i < childCount; i++ {
		storage.Spawn(component.Anchor{Ref: randomRef(rng, anchors)}, component.NewPosition(0, 0.1, 0))
	}

	if err := session.Start(context.Background()); err != nil {
		return nil, err
	}

	// Every anchor is created on the first frames; wait for them.
	for len(device.Session().Anchors()) < anchorCount {
		world.Step(0)
		world.WaitAsync()
	}
	world.Step(0)

	// 3. Run the simulation loop
	report := &Report{
		Duration: duration,
		Anchors:  anchorCount,
		Children: childCount,
		LoseRate: loseRate,
		Systems:  len(world.Scheduler().Systems()),
		UpdateTime: Stats{
			Samples: make([]time.Duration, 0),
		},
	}

	runtime.ReadMemStats(&report.MemStatsStart)

	log.Info().Dur("duration", duration).Msg("running simulation")
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	sim := device.Session()
	startTime := time.Now()
	lastFrameTime := time.Now()

Loop:
	for {
		select {
		case <-ctx.Done():
			break Loop
		default:
			jitter(rng, sim, loseRate)

			deltaTime := time.Since(lastFrameTime)
			lastFrameTime = time.Now()

			updateStart := time.Now()
			world.Step(deltaTime.Seconds())
			report.UpdateTime.Samples = append(report.UpdateTime.Samples, time.Since(updateStart))
			report.TotalUpdates++
		}
	}

	report.TotalTime = time.Since(startTime)
	report.UpdateTime.Finalize()
	runtime.ReadMemStats(&report.MemStatsEnd)

	for _, id := range ecs.EntitiesWith[component.Anchor](storage) {
		if v, ok := ecs.Get[component.Visibility](storage, id); ok && v.Visible {
			report.Visible++
		} else {
			report.Hidden++
		}
	}
	for _, s := range world.Stats().Systems {
		report.PanicCount += s.PanicCount
	}

	log.Info().Msg("simulation finished")
	return report, nil
}

// randomRef picks one of the three addressing modes over random anchors.
func randomRef(rng *rand.Rand, anchors []ecs.EntityId) component.AnchorRef {
	pick := func() ecs.EntityId { return anchors[rng.Intn(len(anchors))] }
	switch rng.Intn(3) {
	case 0:
		return component.SingleEntity{ID: pick()}
	case 1:
		return component.SplitRef{Position: pick(), Orientation: pick()}
	default:
		var ref component.PerAxis
		for i := range ref.Position {
			ref.Position[i] = pick()
		}
		for i := range ref.Orientation {
			ref.Orientation[i] = pick()
		}
		return ref
	}
}

// jitter moves every device anchor slightly, dropping or restoring tracking
// at loseRate.
func jitter(rng *rand.Rand, sim *simxr.Session, loseRate float64) {
	for _, a := range sim.Anchors() {
		if rng.Float64() < loseRate {
			sim.LoseAnchor(a)
			continue
		}
		if rng.Float64() < 0.5 {
			continue
		}
		sim.SetAnchorPose(a, xr.Pose{
			Position:    mgl64.Vec3{rng.Float64()*4 - 2, rng.NormFloat64() * 0.01, -rng.Float64() * 4},
			Orientation: mgl64.QuatRotate(rng.Float64()*0.1, mgl64.Vec3{0, 1, 0}),
		})
	}
}
