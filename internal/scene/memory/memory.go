// Package memory implements scene.Host over an in-memory object tree. It is
// the scene fixture for the test suite and the demo harness: objects, tag
// blobs, poses and motor commands are all set explicitly, and individual
// host reads can be made to fail to exercise the controller's tick-abort
// policy.
package memory

import (
	"fmt"
	"sync"

	"github.com/simflight/quadext/internal/scene"
)

const worldKey = int64(-1)

type object struct {
	name       string
	children   []int64
	customData []byte

	positions map[int64]scene.Vector3 // keyed by reference frame, worldKey = absolute
	matrices  map[int64]scene.Matrix
	eulers    map[int64]scene.Euler

	linVel scene.Vector3
	angVel scene.Vector3

	motorCommand float32
	image        scene.Image
	hasImage     bool

	failing map[string]bool // op name -> forced failure
}

// Scene is an in-memory scene graph satisfying scene.Host.
type Scene struct {
	mu      sync.RWMutex
	nextID  int64
	objects map[int64]*object
}

// New creates an empty scene.
func New() *Scene {
	return &Scene{
		nextID:  1,
		objects: make(map[int64]*object),
	}
}

// AddObject creates an object under parent and returns its handle. An
// absent parent creates a root object. Children enumerate in creation order.
func (s *Scene) AddObject(name string, parent scene.Object) scene.Object {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.objects[id] = &object{
		name:      name,
		positions: make(map[int64]scene.Vector3),
		matrices:  make(map[int64]scene.Matrix),
		eulers:    make(map[int64]scene.Euler),
		failing:   make(map[string]bool),
	}

	if parent.Valid() {
		if p, ok := s.objects[parent.ID()]; ok {
			p.children = append(p.children, id)
		}
	}

	return scene.NewObject(id)
}

// SetCustomData attaches a raw tag blob to an object.
func (s *Scene) SetCustomData(obj scene.Object, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.objects[obj.ID()]; ok {
		o.customData = data
	}
}

// SetPosition sets the position of obj in relativeTo's frame (World() for
// the absolute frame).
func (s *Scene) SetPosition(obj, relativeTo scene.Object, v scene.Vector3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.objects[obj.ID()]; ok {
		o.positions[frameKey(relativeTo)] = v
	}
}

// SetVelocity sets the linear and angular velocity of obj.
func (s *Scene) SetVelocity(obj scene.Object, linear, angular scene.Vector3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.objects[obj.ID()]; ok {
		o.linVel = linear
		o.angVel = angular
	}
}

// SetOrientationMatrix sets the transform of obj relative to relativeTo.
func (s *Scene) SetOrientationMatrix(obj, relativeTo scene.Object, m scene.Matrix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.objects[obj.ID()]; ok {
		o.matrices[frameKey(relativeTo)] = m
	}
}

// SetOrientationEuler sets the Euler angles of obj relative to relativeTo.
func (s *Scene) SetOrientationEuler(obj, relativeTo scene.Object, e scene.Euler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.objects[obj.ID()]; ok {
		o.eulers[frameKey(relativeTo)] = e
	}
}

// SetImage attaches a vision sensor frame to an object.
func (s *Scene) SetImage(obj scene.Object, img scene.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.objects[obj.ID()]; ok {
		o.image = img
		o.hasImage = true
	}
}

// FailOp forces the named host operation ("position", "velocity", "matrix",
// "euler", "image", "customdata", "motor") to fail for obj until cleared.
func (s *Scene) FailOp(obj scene.Object, op string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.objects[obj.ID()]; ok {
		o.failing[op] = fail
	}
}

func frameKey(relativeTo scene.Object) int64 {
	if !relativeTo.Valid() {
		return worldKey
	}
	return relativeTo.ID()
}

func (s *Scene) lookup(obj scene.Object) (*object, error) {
	if !obj.Valid() {
		return nil, scene.ErrInvalidObject
	}
	o, ok := s.objects[obj.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", scene.ErrInvalidObject, obj.ID())
	}
	return o, nil
}

// CustomData implements scene.Scene.
func (s *Scene) CustomData(obj scene.Object) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, err := s.lookup(obj)
	if err != nil {
		return nil, err
	}
	if o.failing["customdata"] {
		return nil, scene.ErrRead
	}
	return o.customData, nil
}

// Child implements scene.Scene.
func (s *Scene) Child(obj scene.Object, index int) scene.Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, err := s.lookup(obj)
	if err != nil || index < 0 || index >= len(o.children) {
		return scene.None()
	}
	return scene.NewObject(o.children[index])
}

// Name implements scene.Scene.
func (s *Scene) Name(obj scene.Object) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, err := s.lookup(obj)
	if err != nil {
		return "", err
	}
	return o.name, nil
}

// Position implements scene.Scene. When no relative position was set
// explicitly, it falls back to the difference of absolute positions.
func (s *Scene) Position(obj, relativeTo scene.Object) (scene.Vector3, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, err := s.lookup(obj)
	if err != nil {
		return scene.Vector3{}, err
	}
	if o.failing["position"] {
		return scene.Vector3{}, scene.ErrRead
	}

	key := frameKey(relativeTo)
	if v, ok := o.positions[key]; ok {
		return v, nil
	}
	if key == worldKey {
		return scene.Vector3{}, nil
	}

	ref, err := s.lookup(relativeTo)
	if err != nil {
		return scene.Vector3{}, err
	}
	a := o.positions[worldKey]
	b := ref.positions[worldKey]
	return scene.Vector3{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z}, nil
}

// Velocity implements scene.Scene.
func (s *Scene) Velocity(obj scene.Object) (scene.Vector3, scene.Vector3, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, err := s.lookup(obj)
	if err != nil {
		return scene.Vector3{}, scene.Vector3{}, err
	}
	if o.failing["velocity"] {
		return scene.Vector3{}, scene.Vector3{}, scene.ErrRead
	}
	return o.linVel, o.angVel, nil
}

// OrientationMatrix implements scene.Scene. An unset matrix reads as the
// identity transform at the object's absolute position.
func (s *Scene) OrientationMatrix(obj, relativeTo scene.Object) (scene.Matrix, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, err := s.lookup(obj)
	if err != nil {
		return scene.Matrix{}, err
	}
	if o.failing["matrix"] {
		return scene.Matrix{}, scene.ErrRead
	}

	if m, ok := o.matrices[frameKey(relativeTo)]; ok {
		return m, nil
	}

	pos := o.positions[worldKey]
	return scene.Matrix{
		1, 0, 0, pos.X,
		0, 1, 0, pos.Y,
		0, 0, 1, pos.Z,
	}, nil
}

// OrientationEuler implements scene.Scene.
func (s *Scene) OrientationEuler(obj, relativeTo scene.Object) (scene.Euler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, err := s.lookup(obj)
	if err != nil {
		return scene.Euler{}, err
	}
	if o.failing["euler"] {
		return scene.Euler{}, scene.ErrRead
	}
	return o.eulers[frameKey(relativeTo)], nil
}

// TransformVector implements scene.Scene: the full 3x4 affine transform in
// single precision, matching the host's vector transform.
func (s *Scene) TransformVector(m scene.Matrix, v scene.Vector3) scene.Vector3 {
	return scene.Vector3{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z + m[3],
		Y: m[4]*v.X + m[5]*v.Y + m[6]*v.Z + m[7],
		Z: m[8]*v.X + m[9]*v.Y + m[10]*v.Z + m[11],
	}
}

// VisionSensorImage implements scene.Scene.
func (s *Scene) VisionSensorImage(obj scene.Object) (scene.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, err := s.lookup(obj)
	if err != nil {
		return scene.Image{}, err
	}
	if o.failing["image"] || !o.hasImage {
		return scene.Image{}, scene.ErrRead
	}
	return o.image, nil
}

// SetMotorCommand implements scene.Actuator.
func (s *Scene) SetMotorCommand(motor scene.Object, velocity float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.lookup(motor)
	if err != nil {
		return err
	}
	if o.failing["motor"] {
		return scene.ErrWrite
	}
	o.motorCommand = velocity
	return nil
}

// MotorCommand implements scene.Actuator.
func (s *Scene) MotorCommand(motor scene.Object) (float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, err := s.lookup(motor)
	if err != nil {
		return 0, err
	}
	if o.failing["motor"] {
		return 0, scene.ErrRead
	}
	return o.motorCommand, nil
}
