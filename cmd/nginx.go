package cmd

import (
	"github.com/spf13/cobra"

	"honey-installer/internal/integrations/nginx"
	"honey-installer/internal/workflow"
)

var (
	nginxFlags  commonFlags
	nginxConf   string
	nginxFormat string
)

// nginxCmd sets up honeytail for an nginx access log.
var nginxCmd = &cobra.Command{
	Use:   "nginx",
	Short: "Set up honeytail for an nginx access log",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, _ []string) error {
		return runInstaller(c, &nginxFlags, nginx.Config(), func(d workflow.Deps) workflow.Adapter {
			return nginx.New(d, nginx.Options{LogFile: nginxFlags.file, Conf: nginxConf, Format: nginxFormat})
		})
	},
}

func init() {
	nginxFlags.register(nginxCmd, nginx.DefaultDataset, "Nginx Access Log File")
	nginxCmd.Flags().StringVar(&nginxConf, "nginx.conf", "", "Nginx Config location")
	nginxCmd.Flags().StringVar(&nginxFormat, "nginx.format", "", "The name of the log_format from your nginx config that you wish to use with Honeycomb")
	rootCmd.AddCommand(nginxCmd)
}
