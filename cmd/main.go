package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corray333/frameshop/order/internal/app"
	"github.com/corray333/frameshop/order/internal/config"
	"github.com/corray333/frameshop/order/internal/dal/postgres"
	"github.com/corray333/frameshop/order/internal/service/services/authsvc"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "order-lifecycle",
		Short: "frameshop order lifecycle service",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.MustInit()
		},
		Run: func(cmd *cobra.Command, args []string) {
			app.MustNewApp().Run()
		},
	}
	rootCmd.AddCommand(
		serveCommand(),
		migrateCommand(),
		employeeCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run HTTP, gRPC, the outbox worker and the change consumer",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			app.MustNewApp().Run()
		},
	}
}

func migrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "manage database migrations",
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := postgres.NewClient(cmd.Context(), postgres.ConnString())
				if err != nil {
					return err
				}
				defer client.Close()

				return client.Migrate()
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "print the state of every migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := postgres.NewClient(cmd.Context(), postgres.ConnString())
				if err != nil {
					return err
				}
				defer client.Close()

				return client.MigrationStatus()
			},
		},
	)

	return migrateCmd
}

func employeeCommand() *cobra.Command {
	employeeCmd := &cobra.Command{
		Use:   "employee",
		Short: "manage back-office accounts",
	}

	var name, email, role, password string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "create an employee account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := postgres.NewClient(ctx, postgres.ConnString())
			if err != nil {
				return err
			}
			defer client.Close()

			svc := app.MustNewAuthService(authsvc.WithPostgresClient(client))
			emp, err := svc.CreateEmployee(ctx, name, email, role, password)
			if err != nil {
				return err
			}

			fmt.Printf("Created %s %s (%s)\n", emp.Role, emp.Email, emp.ID)

			return nil
		},
	}
	addCmd.Flags().StringVar(&name, "name", "", "display name")
	addCmd.Flags().StringVar(&email, "email", "", "login email")
	addCmd.Flags().StringVar(&role, "role", "support", "admin, manager or support")
	addCmd.Flags().StringVar(&password, "password", "", "initial password")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("email")
	_ = addCmd.MarkFlagRequired("password")

	employeeCmd.AddCommand(addCmd)

	return employeeCmd
}
