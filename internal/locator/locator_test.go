package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simflight/quadext/internal/customdata"
	"github.com/simflight/quadext/internal/scene"
	"github.com/simflight/quadext/internal/scene/memory"
)

func tag(roles ...uint32) []byte {
	rec := make(customdata.Record)
	for _, r := range roles {
		rec[r] = nil
	}
	return customdata.Encode(rec)
}

func TestHasField(t *testing.T) {
	sc := memory.New()
	loc := New(sc, nil)

	tagged := sc.AddObject("tagged", scene.None())
	sc.SetCustomData(tagged, tag(customdata.RoleBody, customdata.RoleTarget))

	untagged := sc.AddObject("untagged", scene.None())

	malformed := sc.AddObject("malformed", scene.None())
	sc.SetCustomData(malformed, []byte{0x01, 0x02, 0x03})

	failing := sc.AddObject("failing", scene.None())
	sc.SetCustomData(failing, tag(customdata.RoleBody))
	sc.FailOp(failing, "customdata", true)

	assert.True(t, loc.HasField(tagged, customdata.RoleBody))
	assert.True(t, loc.HasField(tagged, customdata.RoleTarget))
	assert.False(t, loc.HasField(tagged, customdata.RoleMotor0))

	assert.False(t, loc.HasField(untagged, customdata.RoleBody))

	// Malformed blobs and failed reads count as untagged.
	assert.False(t, loc.HasField(malformed, customdata.RoleBody))
	assert.False(t, loc.HasField(failing, customdata.RoleBody))

	assert.False(t, loc.HasField(scene.None(), customdata.RoleBody))
}

func TestFindByField(t *testing.T) {
	// root
	// ├── a
	// │   ├── a1 (tagged deep)
	// │   └── a2
	// └── b (tagged shallow)
	//     └── b1 (tagged deep)
	sc := memory.New()
	root := sc.AddObject("root", scene.None())
	a := sc.AddObject("a", root)
	a1 := sc.AddObject("a1", a)
	sc.AddObject("a2", a)
	b := sc.AddObject("b", root)
	b1 := sc.AddObject("b1", b)

	sc.SetCustomData(a1, tag(customdata.RoleMotor0))
	sc.SetCustomData(b, tag(customdata.RoleBody))
	sc.SetCustomData(b1, tag(customdata.RoleBody, customdata.RoleMotor0))

	loc := New(sc, nil)

	t.Run("root tested before children", func(t *testing.T) {
		sc.SetCustomData(root, tag(customdata.RoleQuadcopter))
		got := loc.FindByField(root, customdata.RoleQuadcopter)
		assert.Equal(t, root, got)
	})

	t.Run("breadth first prefers shallower match", func(t *testing.T) {
		// b at depth 1 and b1 at depth 2 both carry the body tag.
		got := loc.FindByField(root, customdata.RoleBody)
		assert.Equal(t, b, got)
	})

	t.Run("descends to deep match", func(t *testing.T) {
		got := loc.FindByField(root, customdata.RoleMotor0)
		assert.Equal(t, a1, got)
	})

	t.Run("absent field returns invalid handle", func(t *testing.T) {
		got := loc.FindByField(root, customdata.RoleCameraFront)
		assert.False(t, got.Valid())
	})

	t.Run("search scoped to subtree", func(t *testing.T) {
		got := loc.FindByField(a, customdata.RoleBody)
		assert.False(t, got.Valid())
	})

	t.Run("deterministic over repeated runs", func(t *testing.T) {
		first := loc.FindByField(root, customdata.RoleMotor0)
		require.True(t, first.Valid())
		for i := 0; i < 20; i++ {
			assert.Equal(t, first, loc.FindByField(root, customdata.RoleMotor0))
		}
	})
}
