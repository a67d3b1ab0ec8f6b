package exdatum

import (
	"testing"

	"github.com/andreyvit/exdatum/region"
	"github.com/andreyvit/exdatum/toaststore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	SetMetrics(m)
	defer SetMetrics(nil)

	root := region.NewRoot("test")
	w := newWord(1, root)
	flat := Flatten(w)
	if _, err := wordType.Expand(CompactDatum(flat), root); err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if _, err := wordType.Expand(ExpandedDatum(w), root); err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if _, err := blobType.Expand(CompactDatum(flat), root); err == nil {
		t.Fatalf("Expand(word as blob) err = nil, wanted error")
	}

	store := toaststore.NewMemory()
	defer store.Close()
	c := NewCodec(Options{Types: []AnyType{blobType}, External: store, Compression: CompressionLZ4, CompressThreshold: 100, ExternalThreshold: 1 << 20})
	out, err := c.Toast(newBlob(repeated(1000), root))
	if err != nil {
		t.Fatalf("Toast failed: %v", err)
	}
	if _, err := c.Normalize(CompactDatum(out), root); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	root.Release()

	eq(t, testutil.ToFloat64(m.Expansions.WithLabelValues("word")), 1.0)
	eq(t, testutil.ToFloat64(m.Expansions.WithLabelValues("blob")), 1.0)
	eq(t, testutil.ToFloat64(m.PassThrough.WithLabelValues("word")), 1.0)
	eq(t, testutil.ToFloat64(m.Flattens.WithLabelValues("word")), 1.0)
	eq(t, testutil.ToFloat64(m.FlatBytes.WithLabelValues("word")), 16.0)
	eq(t, testutil.ToFloat64(m.DecodeErrors.WithLabelValues("blob")), 1.0)
	eq(t, testutil.ToFloat64(m.Teardowns.WithLabelValues("word")), 2.0)
	eq(t, testutil.ToFloat64(m.Teardowns.WithLabelValues("blob")), 2.0)
	eq(t, testutil.ToFloat64(m.Toasts.WithLabelValues("compressed")), 1.0)
	eq(t, testutil.ToFloat64(m.Detoasts.WithLabelValues("compressed")), 1.0)

	n, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("GatherAndCount failed: %v", err)
	}
	if n == 0 {
		t.Fatalf("no metrics registered")
	}
}

func TestMetrics_NormalizeErrors(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	SetMetrics(m)
	defer SetMetrics(nil)

	root := region.NewRoot("test")
	defer root.Release()
	c := NewCodec(Options{Types: []AnyType{blobType}})

	inputs := map[string][]byte{
		"unknown tag": Flatten(newWord(1, root)),
		"truncated":   {16, 0, 0, 0, 1, 0},
		"bad form":    {0xff, 0xff, 0xff, 0xff, 1, 0, 0, 0},
		"short":       {6, 0, 0, 0, 1, 0},
	}
	for name, data := range inputs {
		if _, err := c.Normalize(CompactDatum(data), root); err == nil {
			t.Fatalf("Normalize(%s) err = nil, wanted error", name)
		}
	}
	eq(t, testutil.ToFloat64(m.DecodeErrors.WithLabelValues("unknown")), float64(len(inputs)))
	eq(t, testutil.ToFloat64(m.DecodeErrors.WithLabelValues("blob")), 0.0)
}
