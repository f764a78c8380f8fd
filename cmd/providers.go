package cmd

import (
	"time"

	"github.com/spf13/viper"

	"github.com/foodscope/foodscope/internal/utils"
	"github.com/foodscope/foodscope/pkg/providers"
	"github.com/foodscope/foodscope/pkg/providers/fatsecret"
	"github.com/foodscope/foodscope/pkg/providers/openfoodfacts"
	"github.com/foodscope/foodscope/pkg/ratelimit"
	"github.com/foodscope/foodscope/pkg/resolver"
	"github.com/foodscope/foodscope/pkg/storage"
)

// buildProviders assembles the provider chain from config. FatSecret goes
// first when credentials are present; Open Food Facts is always available and
// needs no credentials.
func buildProviders() []providers.Provider {
	var out []providers.Provider

	clientID := viper.GetString("fatsecret.client_id")
	clientSecret := viper.GetString("fatsecret.client_secret")
	if clientID != "" && clientSecret != "" {
		out = append(out, fatsecret.New(fatsecret.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Premier:      viper.GetBool("fatsecret.premier"),
			Limits: map[string]ratelimit.Budget{
				"token":   {Requests: 10, Window: time.Minute},
				"barcode": {Requests: 60, Window: time.Minute, Burst: 10},
				"search":  {Requests: 60, Window: time.Minute, Burst: 10},
			},
		}))
	} else {
		utils.Log.Debug("no fatsecret credentials configured, skipping provider")
	}

	out = append(out, openfoodfacts.New(openfoodfacts.Config{
		BaseURL: viper.GetString("openfoodfacts.base_url"),
		Limits: map[string]ratelimit.Budget{
			"barcode": {Requests: 100, Window: time.Minute, Burst: 10},
			"search":  {Requests: 10, Window: time.Minute, Burst: 2},
		},
	}))
	return out
}

// buildResolver opens the cache and wires the resolver for one-shot CLI use,
// where cache writes should finish before the process exits. The returned
// cleanup releases the cross-process write lock and closes the database.
func buildResolver() (*resolver.Resolver, func(), error) {
	dbPath, _ := rootCmd.PersistentFlags().GetString("dbpath")
	if dbPath == "" {
		dbPath = "foodscope.sqlite"
	}

	lock, err := utils.NewDBLock(dbPath)
	if err != nil {
		return nil, nil, err
	}
	if err := lock.Lock(); err != nil {
		return nil, nil, err
	}

	db, err := storage.Open(dbPath)
	if err != nil {
		lock.Unlock()
		return nil, nil, err
	}

	res := resolver.New(resolver.Config{
		Cache:         db,
		Providers:     buildProviders(),
		Log:           utils.Log,
		SyncWriteBack: true,
	})
	cleanup := func() {
		db.Close()
		lock.Unlock()
	}
	return res, cleanup, nil
}
