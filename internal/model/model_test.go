package model

import (
	"encoding/json"
	"testing"
)

func TestItemStack_UnmarshalBareID(t *testing.T) {
	var s ItemStack
	if err := json.Unmarshal([]byte(`168583`), &s); err != nil {
		t.Fatalf("unmarshal bare id: %v", err)
	}
	if s.ItemID != 168583 {
		t.Errorf("ItemID = %d, want 168583", s.ItemID)
	}
	if s.Quantity != 1 {
		t.Errorf("Quantity = %v, want 1", s.Quantity)
	}
	if s.MatRate != 1 {
		t.Errorf("MatRate = %v, want 1", s.MatRate)
	}
}

func TestItemStack_UnmarshalObject(t *testing.T) {
	var s ItemStack
	if err := json.Unmarshal([]byte(`{"itemId":42,"quantity":3,"matRate":0.25}`), &s); err != nil {
		t.Fatalf("unmarshal object: %v", err)
	}
	if s.ItemID != 42 || s.Quantity != 3 || s.MatRate != 0.25 {
		t.Errorf("got %+v, want itemId=42 qty=3 matRate=0.25", s)
	}
}

func TestItemStack_UnmarshalDefaults(t *testing.T) {
	var s ItemStack
	if err := json.Unmarshal([]byte(`{"itemId":42}`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Quantity != 1 {
		t.Errorf("missing quantity should default to 1, got %v", s.Quantity)
	}
	if s.MatRate != 1 {
		t.Errorf("missing matRate should default to 1, got %v", s.MatRate)
	}
}

func TestItemStack_UnmarshalMixedList(t *testing.T) {
	var stacks []ItemStack
	if err := json.Unmarshal([]byte(`[100, {"itemId":200,"quantity":2}]`), &stacks); err != nil {
		t.Fatalf("unmarshal mixed list: %v", err)
	}
	if len(stacks) != 2 {
		t.Fatalf("len = %d, want 2", len(stacks))
	}
	if stacks[0].ItemID != 100 || stacks[0].Quantity != 1 {
		t.Errorf("stacks[0] = %+v, want bare id normalized", stacks[0])
	}
	if stacks[1].ItemID != 200 || stacks[1].Quantity != 2 {
		t.Errorf("stacks[1] = %+v, want itemId=200 qty=2", stacks[1])
	}
}

func TestItemStack_MatRateOutOfRange(t *testing.T) {
	var s ItemStack
	if err := json.Unmarshal([]byte(`{"itemId":7,"quantity":1,"matRate":1.5}`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.MatRate != 1 {
		t.Errorf("matRate > 1 should clamp to 1, got %v", s.MatRate)
	}
}

func TestUnionTags(t *testing.T) {
	out, changed := UnionTags([]string{"REAGENT"}, []string{"MARKET", "REAGENT"})
	if !changed {
		t.Error("expected change when adding MARKET")
	}
	if len(out) != 2 || out[0] != "REAGENT" || out[1] != "MARKET" {
		t.Errorf("out = %v, want [REAGENT MARKET]", out)
	}

	out2, changed2 := UnionTags(out, []string{"MARKET"})
	if changed2 {
		t.Error("re-adding existing tag must not report change")
	}
	if len(out2) != 2 {
		t.Errorf("len = %d, want 2", len(out2))
	}
}

func TestUnionTags_EmptyAdd(t *testing.T) {
	out, changed := UnionTags(nil, []string{"", "VSP"})
	if !changed || len(out) != 1 || out[0] != "VSP" {
		t.Errorf("out = %v changed = %v, want [VSP] true", out, changed)
	}
}

func TestHasAssetClass(t *testing.T) {
	it := ItemRecord{AssetClassTags: []string{"REAGENT", "VSP"}}
	if !it.HasAssetClass("VSP") {
		t.Error("expected VSP")
	}
	if it.HasAssetClass("GOLD") {
		t.Error("did not expect GOLD")
	}
}
