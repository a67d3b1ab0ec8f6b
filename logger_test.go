package exdatum

import (
	"testing"

	"github.com/andreyvit/exdatum/region"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_TracesLifecycle(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	root := region.NewRoot("test")
	w := newWord(9, root)
	if _, err := wordType.Expand(CompactDatum(Flatten(w)), root); err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if _, err := blobType.Expand(CompactDatum(Flatten(w)), root); err == nil {
		t.Fatalf("Expand(word as blob) err = nil, wanted error")
	}
	root.Release()
	expectContract(t, func() { FlatSize(w) })

	for _, msg := range []string{"flat size", "flattened", "expanded", "teardown", "contract violation"} {
		if n := logs.FilterMessage(msg).Len(); n == 0 {
			t.Errorf("no %q log entries", msg)
		}
	}
	eq(t, logs.FilterMessage("teardown").Len(), 2)
	eq(t, logs.FilterMessage("contract violation").All()[0].Level, zapcore.ErrorLevel)

	if Logger() == nil {
		t.Fatalf("Logger() = nil")
	}
}
