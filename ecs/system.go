package ecs

// System represents a behavior that operates on entities with specific components.
// User-defined systems should implement this interface and can include Query and
// Singleton fields, which the Scheduler initializes at registration, as well as
// custom state fields that persist between frames.
//
// Systems that need setup-once behavior keep their own guard flag and check it
// at the top of Execute.
type System interface {
	Execute(frame *UpdateFrame)
}
