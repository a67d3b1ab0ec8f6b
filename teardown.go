package exdatum

import (
	"github.com/andreyvit/exdatum/region"
	"go.uber.org/zap"
)

// bindTeardown arranges for obj to be torn down when r is released. The
// region guarantees the callback runs once, after all child regions are gone
// and before r's own memory is dropped.
func bindTeardown(typ *typeInfo, obj Object, r *region.Region) {
	r.OnRelease(func() {
		h := obj.header()
		if h.released {
			panic("unreachable: teardown ran twice")
		}
		if rel, ok := obj.(PayloadReleaser); ok {
			rel.ReleasePayload()
		}
		h.released = true
		metrics().observeTeardown(typ.name)
		logger().Debug("teardown", zap.String("type", typ.name), zap.String("region", r.Path()))
	})
}
