package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
)

func TestProductOrderable(t *testing.T) {
	p := domain.Product{ID: "p", Name: "Widget", Price: decimal.NewFromInt(1), StockQuantity: 5, IsAvailable: true}

	if !p.Orderable(5) {
		t.Fatal("expected 5 units to be orderable")
	}
	if p.Orderable(6) {
		t.Fatal("expected 6 units to exceed stock")
	}

	p.IsAvailable = false
	if p.Orderable(1) {
		t.Fatal("unavailable product must never be orderable")
	}
}

func TestProductPatchApply(t *testing.T) {
	original := domain.Product{ID: "p", Name: "Widget", Price: decimal.NewFromInt(1), StockQuantity: 5, IsAvailable: true}

	name := "  Gadget "
	stock := 7
	patched := domain.ProductPatch{Name: &name, StockQuantity: &stock}.Apply(original)

	if patched.ID != "p" {
		t.Fatalf("id must be preserved, got %q", patched.ID)
	}
	if patched.Name != "Gadget" {
		t.Fatalf("expected trimmed name, got %q", patched.Name)
	}
	if patched.StockQuantity != 7 {
		t.Fatalf("expected stock 7, got %d", patched.StockQuantity)
	}
	if !patched.Price.Equal(original.Price) || !patched.IsAvailable {
		t.Fatal("untouched fields changed")
	}
	if original.Name != "Widget" {
		t.Fatal("apply must not mutate the source product")
	}
}

func TestProductPatchEmpty(t *testing.T) {
	if !(domain.ProductPatch{}).Empty() {
		t.Fatal("zero patch should be empty")
	}
	available := false
	if (domain.ProductPatch{IsAvailable: &available}).Empty() {
		t.Fatal("patch with a field should not be empty")
	}
}
