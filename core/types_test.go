package core

import (
	"math"
	"testing"
)

func TestAddSafe(t *testing.T) {
	if v, err := AddSafe(10, 5); err != nil || v != 15 {
		t.Fatalf("got %v %v", v, err)
	}
	if _, err := AddSafe(math.MaxInt64, 1); err == nil {
		t.Fatalf("expected overflow")
	}
}

func TestNormalizeUserID(t *testing.T) {
	id, err := NormalizeUserID(" Alice ")
	if err != nil || id != "Alice" {
		t.Fatalf("got %v %v", id, err)
	}
	if _, err := NormalizeUserID("   "); err != ErrEmptyUserID {
		t.Fatalf("expected ErrEmptyUserID, got %v", err)
	}
}

func TestValidateActionKey(t *testing.T) {
	if err := ValidateActionKey("recipes_saved"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	for _, bad := range []ActionKey{"", "  ", "Recipes", "likes given"} {
		if err := ValidateActionKey(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestCategoryValid(t *testing.T) {
	if !CategoryCooking.Valid() || !CategorySocial.Valid() || !CategoryCommunity.Valid() {
		t.Fatal("known categories must be valid")
	}
	if Category("gaming").Valid() {
		t.Fatal("unexpected valid category")
	}
}
