package quadcopter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simflight/quadext/internal/customdata"
	"github.com/simflight/quadext/internal/scene"
	"github.com/simflight/quadext/internal/scene/memory"
)

func tag(role uint32) []byte {
	return customdata.Encode(customdata.Record{role: nil})
}

// rig is a fully tagged quadcopter model in a fresh memory scene.
type rig struct {
	sc     *memory.Scene
	quad   scene.Object
	body   scene.Object
	target scene.Object
	motors [4]scene.Object
}

// newRig builds the standard test model: body 0.8m below the target, at
// rest, level. Every role is tagged.
func newRig(t *testing.T) *rig {
	t.Helper()

	sc := memory.New()
	r := &rig{sc: sc}

	r.quad = sc.AddObject("Quadcopter", scene.None())
	sc.SetCustomData(r.quad, tag(customdata.RoleQuadcopter))
	sc.SetVelocity(r.quad, scene.Vector3{}, scene.Vector3{})

	r.body = sc.AddObject("Quadcopter_body", r.quad)
	sc.SetCustomData(r.body, tag(customdata.RoleBody))
	sc.SetPosition(r.body, scene.World(), scene.Vector3{Z: 0.2})

	motorRoles := [4]uint32{
		customdata.RoleMotor0,
		customdata.RoleMotor1,
		customdata.RoleMotor2,
		customdata.RoleMotor3,
	}
	for i, role := range motorRoles {
		r.motors[i] = sc.AddObject("Quadcopter_propeller", r.body)
		sc.SetCustomData(r.motors[i], tag(role))
	}

	camDown := sc.AddObject("Quadcopter_floorCamera", r.body)
	sc.SetCustomData(camDown, tag(customdata.RoleCameraDown))
	camFront := sc.AddObject("Quadcopter_frontCamera", r.body)
	sc.SetCustomData(camFront, tag(customdata.RoleCameraFront))

	r.target = sc.AddObject("Quadcopter_target", r.quad)
	sc.SetCustomData(r.target, tag(customdata.RoleTarget))
	sc.SetPosition(r.target, scene.World(), scene.Vector3{Z: 1.0})

	return r
}

func TestQuery(t *testing.T) {
	r := newRig(t)

	assert.True(t, Query(r.sc, r.quad))
	// Children carry other roles, not the quadcopter tag.
	assert.False(t, Query(r.sc, r.body))
	assert.False(t, Query(r.sc, scene.None()))
}

func TestNewBindsAllRoles(t *testing.T) {
	r := newRig(t)

	q := New(r.sc, nil, r.quad)
	require.NotNil(t, q)

	b := q.Bindings()
	assert.Equal(t, r.quad, b.Quadcopter)
	assert.Equal(t, r.body, b.Body)
	assert.Equal(t, r.target, b.Target)
	for i := 0; i < 4; i++ {
		assert.Equal(t, r.motors[i], b.Motors[i], "motor %d", i)
	}
	assert.True(t, b.CameraDown.Valid())
	assert.True(t, b.CameraFront.Valid())
	assert.Equal(t, b.CameraDown, q.CameraDown())
	assert.Equal(t, b.CameraFront, q.CameraFront())
}

func TestNewToleratesMissingRoles(t *testing.T) {
	sc := memory.New()
	quad := sc.AddObject("Quadcopter", scene.None())
	sc.SetCustomData(quad, tag(customdata.RoleQuadcopter))
	body := sc.AddObject("body", quad)
	sc.SetCustomData(body, tag(customdata.RoleBody))

	q := New(sc, nil, quad)
	require.NotNil(t, q)

	b := q.Bindings()
	assert.Equal(t, body, b.Body)
	assert.False(t, b.Target.Valid())
	assert.False(t, b.CameraDown.Valid())
	assert.False(t, b.CameraFront.Valid())
	for i := 0; i < 4; i++ {
		assert.False(t, b.Motors[i].Valid(), "motor %d", i)
	}
}

func TestNewTargetOutsideSubtreeUnbound(t *testing.T) {
	// A target outside the quadcopter subtree must not be found; the search
	// is scoped to the model's own hierarchy.
	sc := memory.New()
	quad := sc.AddObject("Quadcopter", scene.None())
	sc.SetCustomData(quad, tag(customdata.RoleQuadcopter))
	stray := sc.AddObject("stray_target", scene.None())
	sc.SetCustomData(stray, tag(customdata.RoleTarget))

	q := New(sc, nil, quad)
	assert.False(t, q.Bindings().Target.Valid())
}
