package main

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jiaming2012/webhook-trader/src/cmd/export_orders/run"
	"github.com/jiaming2012/webhook-trader/src/dbutils"
	"github.com/jiaming2012/webhook-trader/src/models"
	"github.com/jiaming2012/webhook-trader/src/utils"
)

var runCmd = &cobra.Command{
	Use:   "go run src/cmd/export_orders/main.go --outDir ./exports --ticker TSLA",
	Short: "Export stored webhook orders to CSV, or print them as JSON",
	Run: func(cmd *cobra.Command, args []string) {
		outDir, err := cmd.Flags().GetString("outDir")
		if err != nil {
			log.Fatalf("error getting outDir: %v", err)
		}

		ticker, err := cmd.Flags().GetString("ticker")
		if err != nil {
			log.Fatalf("error getting ticker: %v", err)
		}

		nickname, err := cmd.Flags().GetString("nickname")
		if err != nil {
			log.Fatalf("error getting nickname: %v", err)
		}

		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			log.Fatalf("error getting limit: %v", err)
		}

		dbURI, err := utils.GetEnv("DB_URI")
		if err != nil {
			log.Fatal(err)
		}

		db, err := dbutils.InitPostgresWithUrl(dbURI, utils.GetEnvBool("DB_ECHO"))
		if err != nil {
			log.Fatalf("failed to initialize database: %v", err)
		}

		store := dbutils.NewPostgresStore(db)

		orders, err := store.ListOrders(models.OrderFilter{
			Ticker:   ticker,
			Nickname: nickname,
			Limit:    limit,
		})
		if err != nil {
			log.Fatalf("failed to list orders: %v", err)
		}

		if outDir == "" {
			ordersJSON, err := json.MarshalIndent(orders, "", "  ")
			if err != nil {
				log.Errorf("Failed to marshal orders: %v", err)
			} else {
				fmt.Println(string(ordersJSON))
			}
			return
		}

		csvPath, err := run.ExportToCsv(outDir, orders, "orders")
		if err != nil {
			log.Errorf("Failed to export to CSV: %v", err)
		} else {
			fmt.Println("CSV file written to: ", csvPath)
		}
	},
}

func main() {
	if err := utils.InitEnvironmentVariables(); err != nil {
		log.Warnf("failed to load env file: %v", err)
	}

	runCmd.PersistentFlags().String("outDir", "", "Directory to write the CSV file; prints JSON when empty")
	runCmd.PersistentFlags().String("ticker", "", "Filter by ticker")
	runCmd.PersistentFlags().String("nickname", "", "Filter by nickname")
	runCmd.PersistentFlags().Int("limit", 0, "Max orders to export")

	if err := runCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
