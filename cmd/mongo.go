package cmd

import (
	"github.com/spf13/cobra"

	"honey-installer/internal/integrations/mongo"
	"honey-installer/internal/workflow"
)

var mongoFlags commonFlags

// mongoCmd sets up honeytail for a MongoDB server running on this machine.
var mongoCmd = &cobra.Command{
	Use:   "mongo",
	Short: "Set up honeytail for MongoDB",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, _ []string) error {
		return runInstaller(c, &mongoFlags, mongo.Config(), func(d workflow.Deps) workflow.Adapter {
			return mongo.New(d, mongo.Options{LogFile: mongoFlags.file})
		})
	},
}

func init() {
	mongoFlags.register(mongoCmd, mongo.DefaultDataset, "Mongo Log File")
	rootCmd.AddCommand(mongoCmd)
}
