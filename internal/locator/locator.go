// Package locator resolves which objects in a scene subtree play which
// structural role, by searching for the first object tagged with a given
// custom data field.
package locator

import (
	"errors"
	"log/slog"

	"github.com/simflight/quadext/internal/customdata"
	"github.com/simflight/quadext/internal/queue"
	"github.com/simflight/quadext/internal/scene"
)

// Locator finds role-tagged objects in the host's object hierarchy.
type Locator struct {
	scene  scene.Scene
	logger *slog.Logger
}

// New creates a Locator over the given scene.
func New(sc scene.Scene, logger *slog.Logger) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{scene: sc, logger: logger}
}

// HasField reports whether the object itself carries the custom data field.
// A malformed tag blob counts as "no tags": scene edits may leave partially
// written data and must not abort role discovery.
func (l *Locator) HasField(obj scene.Object, fieldID uint32) bool {
	if !obj.Valid() {
		return false
	}

	buf, err := l.scene.CustomData(obj)
	if err != nil || len(buf) == 0 {
		return false
	}

	rec, err := customdata.Decode(buf)
	if err != nil {
		if errors.Is(err, customdata.ErrFormat) {
			l.logger.Debug("Ignoring malformed custom data",
				"object", obj.ID(), "error", err)
			return false
		}
		return false
	}

	return rec.HasField(fieldID)
}

// FindByField searches the subtree rooted at root for the first object
// carrying the field, in breadth-first order. The root itself is tested
// first and children are visited in the host's native enumeration order, so
// the result is deterministic for an unchanged tree. Returns the absent
// handle when the subtree is exhausted without a match.
//
// The hierarchy is assumed to be a tree; the host maintains that invariant
// and no cycle detection is done here.
func (l *Locator) FindByField(root scene.Object, fieldID uint32) scene.Object {
	frontier := queue.New[scene.Object]()
	frontier.Push(root)

	for {
		obj, ok := frontier.Pop()
		if !ok {
			break
		}

		if l.HasField(obj, fieldID) {
			return obj
		}

		for i := 0; ; i++ {
			child := l.scene.Child(obj, i)
			if !child.Valid() {
				break
			}
			frontier.Push(child)
		}
	}

	return scene.None()
}
