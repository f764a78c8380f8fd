package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/foodscope/foodscope/internal/server"
	"github.com/foodscope/foodscope/internal/utils"
	"github.com/foodscope/foodscope/pkg/resolver"
	"github.com/foodscope/foodscope/pkg/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the foodscope HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		listenAddr, _ := cmd.Flags().GetString("listen")

		dbPath, _ := rootCmd.PersistentFlags().GetString("dbpath")
		if dbPath == "" {
			dbPath = "foodscope.sqlite"
		}

		lock, err := utils.NewDBLock(dbPath)
		if err != nil {
			return err
		}
		if err := lock.Lock(); err != nil {
			return err
		}
		defer lock.Unlock()

		db, err := storage.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		res := resolver.New(resolver.Config{
			Cache:     db,
			Providers: buildProviders(),
			Log:       utils.Log,
		})
		defer res.Wait()

		srv := server.New(db, res,
			viper.GetString("server.username"),
			viper.GetString("server.password"))
		return srv.Start(listenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
}
