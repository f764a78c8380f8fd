package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/foodscope/foodscope/pkg/product"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testProduct() *product.Data {
	return &product.Data{
		ID:      "off:3017620422003",
		Barcode: "3017620422003",
		Name:    "Nutella",
		Brand:   "Ferrero",
		Serving: product.Serving{Size: 15, Unit: "g"},
		NutritionalInfo: product.NutritionalInfo{
			Calories:      product.Float(539),
			Protein:       product.Float(6),
			Carbohydrates: product.Float(57.5),
			Fat:           product.Float(30.9),
			Sugars:        product.Float(56.3),
			SaturatedFat:  product.Float(10.6),
			Sodium:        product.Float(0.107),
			Potassium:     product.Float(407),
		},
		NutriGrade:    product.GradeD,
		UpstreamGrade: "e",
		Verified:      true,
		Ingredients:   "sugar, palm oil, hazelnuts",
	}
}

func TestFindByBarcodeMiss(t *testing.T) {
	db := openTestDB(t)
	got, err := db.FindByBarcode(context.Background(), "40000000")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil on miss, got %+v", got)
	}
}

func TestUpsertAndFindRoundTrip(t *testing.T) {
	db := openTestDB(t)
	want := testProduct()
	if err := db.UpsertProduct(context.Background(), want); err != nil {
		t.Fatal(err)
	}

	got, err := db.FindByBarcode(context.Background(), "3017620422003")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a hit")
	}
	if got.ID != want.ID || got.Name != want.Name || got.Brand != want.Brand {
		t.Errorf("identity fields = %q/%q/%q", got.ID, got.Name, got.Brand)
	}
	if got.NutriGrade != product.GradeD || got.UpstreamGrade != "e" {
		t.Errorf("grades = %q/%q", got.NutriGrade, got.UpstreamGrade)
	}
	if !got.Verified {
		t.Error("verified flag lost")
	}
	if got.Serving.Size != 15 || got.Serving.Unit != "g" {
		t.Errorf("serving = %+v", got.Serving)
	}
	if got.Calories == nil || *got.Calories != 539 {
		t.Errorf("calories = %v", got.Calories)
	}
	if got.Sodium == nil || *got.Sodium != 0.107 {
		t.Errorf("sodium = %v", got.Sodium)
	}
	// Long-tail nutrient survives via the JSON column.
	if got.Potassium == nil || *got.Potassium != 407 {
		t.Errorf("potassium = %v", got.Potassium)
	}
	// Absent stays absent, never zero.
	if got.Fiber != nil {
		t.Errorf("fiber = %v, want nil", got.Fiber)
	}
	if got.MissingCritical {
		t.Error("full critical quartet must read back as not missing")
	}
}

func TestUpsertReplacesOnBarcodeConflict(t *testing.T) {
	db := openTestDB(t)
	first := testProduct()
	if err := db.UpsertProduct(context.Background(), first); err != nil {
		t.Fatal(err)
	}

	second := testProduct()
	second.ID = "fatsecret:38821"
	second.Name = "Hazelnut Spread"
	second.Calories = product.Float(541)
	if err := db.UpsertProduct(context.Background(), second); err != nil {
		t.Fatal(err)
	}

	got, err := db.FindByBarcode(context.Background(), "3017620422003")
	if err != nil || got == nil {
		t.Fatalf("got %v / %v", got, err)
	}
	if got.Name != "Hazelnut Spread" {
		t.Errorf("name = %q, want the refreshed record", got.Name)
	}
	if got.Calories == nil || *got.Calories != 541 {
		t.Errorf("calories = %v, want 541", got.Calories)
	}

	recent, err := db.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected one row after barcode conflict, got %d", len(recent))
	}
}

func TestUpsertBarcodelessCollidesOnID(t *testing.T) {
	db := openTestDB(t)
	p := testProduct()
	p.ID = "ae0f6f45-2f84-4a1c-8de1-000000000001"
	p.Barcode = ""
	p.Verified = false
	if err := db.UpsertProduct(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	p.Name = "Renamed"
	if err := db.UpsertProduct(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	recent, err := db.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || recent[0].Name != "Renamed" {
		t.Fatalf("recent = %+v", recent)
	}
}

func TestTwoBarcodelessRowsCoexist(t *testing.T) {
	db := openTestDB(t)
	for _, id := range []string{"uuid-1", "uuid-2"} {
		p := testProduct()
		p.ID = id
		p.Barcode = ""
		if err := db.UpsertProduct(context.Background(), p); err != nil {
			t.Fatal(err)
		}
	}
	recent, err := db.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("partial unique index must ignore NULL barcodes, got %d rows", len(recent))
	}
}

func TestSearchByName(t *testing.T) {
	db := openTestDB(t)
	a := testProduct()
	b := testProduct()
	b.ID = "off:1"
	b.Barcode = "40000000"
	b.Name = "Peanut Butter"
	b.Brand = "Acme"
	for _, p := range []*product.Data{a, b} {
		if err := db.UpsertProduct(context.Background(), p); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.SearchByName(context.Background(), "nut", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("substring match expected both, got %d", len(got))
	}

	got, err = db.SearchByName(context.Background(), "ferrero", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "Nutella" {
		t.Fatalf("brand match failed: %+v", got)
	}
}

func TestGetStatsGroupsBySource(t *testing.T) {
	db := openTestDB(t)
	a := testProduct()
	b := testProduct()
	b.ID = "fatsecret:1"
	b.Barcode = "40000000"
	c := testProduct()
	c.ID = "uuid-3"
	c.Barcode = ""
	c.Verified = false
	for _, p := range []*product.Data{a, b, c} {
		if err := db.UpsertProduct(context.Background(), p); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := db.GetStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	bySource := map[string]SourceStats{}
	for _, s := range stats {
		bySource[s.Source] = s
	}
	if bySource["off"].ProductCount != 1 || bySource["fatsecret"].ProductCount != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if bySource["manual"].ProductCount != 1 || bySource["manual"].VerifiedCount != 0 {
		t.Errorf("manual stats = %+v", bySource["manual"])
	}
}
