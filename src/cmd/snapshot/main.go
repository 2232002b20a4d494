package main

import (
	"context"
	"os"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jiaming2012/webhook-trader/src/alpaca"
	"github.com/jiaming2012/webhook-trader/src/dbutils"
	"github.com/jiaming2012/webhook-trader/src/eventpubsub"
	"github.com/jiaming2012/webhook-trader/src/models"
	"github.com/jiaming2012/webhook-trader/src/services"
	"github.com/jiaming2012/webhook-trader/src/utils"
)

var runCmd = &cobra.Command{
	Use:   "go run src/cmd/snapshot/main.go --account paper1",
	Short: "Take an account snapshot, or list recent ones with --list",
	Run: func(cmd *cobra.Command, args []string) {
		account, err := cmd.Flags().GetString("account")
		if err != nil {
			log.Fatalf("error getting account: %v", err)
		}

		list, err := cmd.Flags().GetBool("list")
		if err != nil {
			log.Fatalf("error getting list: %v", err)
		}

		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			log.Fatalf("error getting limit: %v", err)
		}

		if !list && account == "" {
			log.Fatal("either --account or --list is required")
		}

		snapshotService, err := setup()
		if err != nil {
			log.Fatalf("setup failed: %v", err)
		}

		if account != "" {
			snapshot, err := snapshotService.TakeSnapshot(context.Background(), account)
			if err != nil {
				log.Fatalf("failed to take snapshot: %v", err)
			}

			log.Infof("snapshot %d: %s cash=%.2f equity=%.2f", snapshot.ID, snapshot.Name, snapshot.Cash, snapshot.Equity)
		}

		if list {
			snapshots, err := snapshotService.ListSnapshots(limit)
			if err != nil {
				log.Fatalf("failed to list snapshots: %v", err)
			}

			printTable(snapshots)
		}
	},
}

func setup() (*services.SnapshotService, error) {
	dbURI, err := utils.GetEnv("DB_URI")
	if err != nil {
		return nil, err
	}

	db, err := dbutils.InitPostgresWithUrl(dbURI, utils.GetEnvBool("DB_ECHO"))
	if err != nil {
		return nil, err
	}

	accounts, err := models.ParseAccounts(os.Getenv("ACCOUNTS"))
	if err != nil {
		return nil, err
	}

	brokers := make(map[string]alpaca.Broker, len(accounts))
	for name, creds := range accounts {
		brokers[name] = alpaca.NewClient(creds)
	}

	eventpubsub.Init()

	return services.NewSnapshotService(dbutils.NewPostgresStore(db), brokers), nil
}

func printTable(snapshots []*models.AccountSnapshot) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Account", "Cash", "Equity", "Created At"})

	for _, snap := range snapshots {
		table.Append([]string{
			utils.FormatUint(snap.ID),
			snap.Name,
			utils.FormatMoney(snap.Cash),
			utils.FormatMoney(snap.Equity),
			snap.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	table.Render()
}

func main() {
	if err := utils.InitEnvironmentVariables(); err != nil {
		log.Warnf("failed to load env file: %v", err)
	}

	runCmd.PersistentFlags().String("account", "", "Account name to snapshot")
	runCmd.PersistentFlags().Bool("list", false, "List recent snapshots")
	runCmd.PersistentFlags().Int("limit", 0, "Max snapshots to list")

	if err := runCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
