// Package scene defines the boundary between the extension and the host
// simulation engine: opaque object handles into the host's scene graph and
// the capability interfaces the flight core consumes. The host owns the
// objects; handles are only valid while the host keeps them alive.
package scene

import "errors"

var (
	// ErrRead reports a failed pose/kinematics query against the host.
	ErrRead = errors.New("scene: read failed")
	// ErrWrite reports a failed actuator write against the host.
	ErrWrite = errors.New("scene: write failed")
	// ErrInvalidObject reports an operation on an absent handle.
	ErrInvalidObject = errors.New("scene: invalid object handle")
)

// Object is a non-owning handle to an object in the host's object table.
// The zero value is the absent handle.
type Object struct {
	id int64
	ok bool
}

// NewObject wraps a host object identifier in a handle.
func NewObject(id int64) Object {
	return Object{id: id, ok: true}
}

// None is the absent handle, returned when a lookup finds no object.
func None() Object {
	return Object{}
}

// Valid reports whether the handle refers to an object.
func (o Object) Valid() bool {
	return o.ok
}

// ID returns the host identifier. Only meaningful when Valid.
func (o Object) ID() int64 {
	return o.id
}

// World is the reference frame for absolute pose queries. It is an absent
// handle by convention, matching the host API's frame sentinel.
func World() Object {
	return Object{}
}

// Vector3 is a 3-component vector in host units. The host works in single
// precision; keeping float32 here preserves the controller's tuned numerics.
type Vector3 struct {
	X, Y, Z float32
}

// Matrix is a 3x4 row-major transform matrix as the host reports it.
// Elements 3, 7 and 11 are the X, Y and Z translation components.
type Matrix [12]float32

// Euler holds intrinsic Euler angles (alpha, beta, gamma) in radians.
type Euler struct {
	A, B, G float32
}

// Image is a raw camera frame from a vision sensor. Pixels are RGB float
// triples in [0,1], row-major, Width*Height*3 values.
type Image struct {
	Width  int
	Height int
	Pixels []float32
}

// Scene is the read side of the host boundary. Pose and kinematics queries
// return an error wrapping ErrRead when the host reports a failure; the
// controller aborts the remainder of that tick.
type Scene interface {
	// CustomData returns the raw tag blob attached to an object.
	// A nil or empty slice means the object carries no tags.
	CustomData(obj Object) ([]byte, error)

	// Child returns the child at the given index in the host's native
	// enumeration order, or the absent handle past the last child.
	Child(obj Object, index int) Object

	// Name returns the host's display name for an object. Diagnostics only.
	Name(obj Object) (string, error)

	// Position returns the position of obj expressed in relativeTo's frame.
	// World() selects the absolute frame.
	Position(obj, relativeTo Object) (Vector3, error)

	// Velocity returns the linear and angular velocity of obj in the world frame.
	Velocity(obj Object) (linear, angular Vector3, err error)

	// OrientationMatrix returns the transform of obj relative to relativeTo.
	OrientationMatrix(obj, relativeTo Object) (Matrix, error)

	// OrientationEuler returns the Euler angles of obj relative to relativeTo.
	OrientationEuler(obj, relativeTo Object) (Euler, error)

	// TransformVector applies the full affine transform to a vector.
	TransformVector(m Matrix, v Vector3) Vector3

	// VisionSensorImage retrieves the current frame of a vision sensor.
	VisionSensorImage(obj Object) (Image, error)
}

// Actuator is the write side of the host boundary. Motor commands address
// the particle velocity parameter of a motor object's script.
type Actuator interface {
	SetMotorCommand(motor Object, velocity float32) error
	MotorCommand(motor Object) (float32, error)
}

// Host combines the capabilities a fully wired quadcopter needs.
type Host interface {
	Scene
	Actuator
}
