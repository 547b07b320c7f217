package ecs_test

import (
	"fmt"

	"github.com/plus3/arworlds/ecs"
)

type ScaleInput struct {
	Increase bool
	Held     bool
}

type ScaleInputReader struct {
	Input ecs.Singleton[ScaleInput]
}

func (s *ScaleInputReader) Execute(frame *ecs.UpdateFrame) {
	in := s.Input.Get()
	fmt.Printf("increase=%v held=%v\n", in.Increase, in.Held)
	in.Increase = false
}

// ExampleSingleton shows a singleton shared between code outside the world
// (an input adapter) and a system. The Scheduler binds Singleton fields when
// the system is registered.
func ExampleSingleton() {
	storage := ecs.NewStorage(nil)
	scheduler := ecs.NewScheduler(storage)

	input := ecs.NewSingleton[ScaleInput](storage)
	scheduler.Register(&ScaleInputReader{})

	input.Set(ScaleInput{Increase: true})
	scheduler.Once(0)
	scheduler.Once(0)

	// Output:
	// increase=true held=false
	// increase=false held=false
}
