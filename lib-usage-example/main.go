package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/foodscope/foodscope/pkg/providers"
	"github.com/foodscope/foodscope/pkg/providers/openfoodfacts"
	"github.com/foodscope/foodscope/pkg/resolver"
)

func main() {
	// Usage: go run main.go -barcode 3017620422003

	barcodeFlag := flag.String("barcode", "", "Product barcode (8-14 digits)")

	// Parse the command-line flags
	flag.Parse()

	if *barcodeFlag == "" {
		fmt.Println("Barcode is required. Please provide it using the -barcode flag.")
		return
	}

	// All providers are supported, syntax is similar; Open Food Facts needs
	// no credentials. Without a cache every lookup goes straight upstream.
	res := resolver.New(resolver.Config{
		Providers: []providers.Provider{
			openfoodfacts.New(openfoodfacts.Config{}),
		},
	})

	p, err := res.ResolveByBarcode(context.Background(), *barcodeFlag)
	if err != nil {
		fmt.Println("lookup failed:", err)
		return
	}
	if p == nil {
		fmt.Println("No product matches this barcode.")
		return
	}

	fmt.Printf("%s (%s) - Nutri-grade %s\n", p.Name, p.Brand, p.NutriGrade)
	if p.Calories != nil {
		fmt.Printf("  %.0f kcal per 100g\n", *p.Calories)
	}
}
