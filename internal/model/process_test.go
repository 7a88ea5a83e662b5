package model

import "testing"

func TestCanFollow(t *testing.T) {
	cases := []struct {
		prev, next ProcessName
		want       bool
	}{
		{"", ProcessCutting, true},
		{ProcessDraft, ProcessCutting, true},
		{ProcessDraft, ProcessSewing, false},
		{"", ProcessDelivered, false},
		{ProcessCutting, ProcessSewing, true},
		{ProcessCutting, ProcessPacking, false},
		{ProcessEmbroidery, ProcessPrinting, true},
		{ProcessPrinting, ProcessEmbroidery, true},
		{ProcessQCSewing, ProcessSewing, true},
		{ProcessFinalQC, ProcessIroning, true},
		{ProcessPacking, ProcessWarehouse, true},
		{ProcessShipping, ProcessDelivered, true},
		{ProcessDelivered, ProcessCutting, false},
		{"knitting", ProcessSewing, false},
	}
	for _, c := range cases {
		if got := CanFollow(c.prev, c.next); got != c.want {
			t.Errorf("CanFollow(%q, %q) = %v, want %v", c.prev, c.next, got, c.want)
		}
	}
}

func TestProcessCatalogIsComplete(t *testing.T) {
	catalog := ProcessCatalog()
	if len(catalog) != len(processCatalog) {
		t.Fatalf("catalogue lists %d of %d processes", len(catalog), len(processCatalog))
	}
	if catalog[0].Name != ProcessCutting || catalog[len(catalog)-1].Name != ProcessDelivered {
		t.Fatalf("catalogue runs %s to %s", catalog[0].Name, catalog[len(catalog)-1].Name)
	}
	for _, def := range catalog {
		for _, next := range def.Successors {
			if !next.IsValid() {
				t.Errorf("%s lists unknown successor %s", def.Name, next)
			}
		}
	}
	if ProcessDraft.IsValid() {
		t.Fatal("draft must not be assignable")
	}
}
