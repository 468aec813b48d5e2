package cmd

import (
	"github.com/spf13/cobra"

	"honey-installer/internal/integrations/mysql"
	"honey-installer/internal/workflow"
)

var (
	mysqlFlags commonFlags
	mysqlUser  string
	mysqlPass  string
)

// mysqlCmd sets up honeytail for the slow query log of a local MySQL server.
var mysqlCmd = &cobra.Command{
	Use:   "mysql",
	Short: "Set up honeytail for the MySQL slow query log",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, _ []string) error {
		return runInstaller(c, &mysqlFlags, mysql.Config(), func(d workflow.Deps) workflow.Adapter {
			return mysql.New(d, mysql.Options{LogFile: mysqlFlags.file, Username: mysqlUser, Password: mysqlPass})
		})
	},
}

func init() {
	mysqlFlags.register(mysqlCmd, mysql.DefaultDataset, "mysql Log File")
	mysqlCmd.Flags().StringVar(&mysqlUser, "username", mysql.DefaultUsername, "mysql username")
	mysqlCmd.Flags().StringVar(&mysqlPass, "password", "", "mysql password")
	rootCmd.AddCommand(mysqlCmd)
}
