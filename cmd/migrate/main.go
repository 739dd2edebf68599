package main

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/jcmexdev/vending-sagas/internal/pkg/config"
)

const versionTimeFormat = "20060102150405"

func main() {
	rootCmd := &cobra.Command{}
	rootCmd.AddCommand(
		createMigrationCommand(),
		migrateCommand(),
	)

	err := rootCmd.Execute()
	if err != nil {
		panic(err)
	}
}

func createMigrationCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-create [service] [name]",
		Short: "create sql migrations",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			now := time.Now()
			version := now.Format(versionTimeFormat)
			service := args[0]
			name := args[1]

			target, err := migrationTarget(service)
			if err != nil {
				panic(err)
			}
			up := fmt.Sprintf("%s/%s_%s.up.sql", target.MigrationDir, version, name)
			down := fmt.Sprintf("%s/%s_%s.down.sql", target.MigrationDir, version, name)

			err = os.WriteFile(up, []byte{}, 0644)
			if err != nil {
				panic(err)
			}

			err = os.WriteFile(down, []byte{}, 0644)
			if err != nil {
				panic(err)
			}

			fmt.Println("Created SQL up script:", up)
			fmt.Println("Created SQL down script:", down)
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-up [service]",
		Short: "migrate all the way up",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			service := args[0]

			target, err := migrationTarget(service)
			if err != nil {
				panic(err)
			}
			m, err := migrate.New(
				fmt.Sprintf("file://%s", target.MigrationDir),
				fmt.Sprintf("mysql://%s", target.DatabaseDSN),
			)
			if err != nil {
				panic(err)
			}

			err = m.Up()
			if err == migrate.ErrNoChange {
				fmt.Println("No change in migration")
				return
			}
			if err != nil {
				panic(err)
			}
			fmt.Println("Migrated up")
		},
	}
}

func migrationTarget(service string) (config.MigrationTarget, error) {
	conf := config.MigrationsFromEnv()
	for _, target := range []config.MigrationTarget{conf.Order, conf.Inventory, conf.Billing} {
		if service == target.Name {
			return target, nil
		}
	}
	return config.MigrationTarget{}, fmt.Errorf("unknown service %q", service)
}
