package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:       "get [apps|hosts|deployments|containers]",
	Short:     "List resources",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"apps", "hosts", "deployments", "containers"},
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildCore()
		if err != nil {
			return err
		}
		defer c.close()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		defer w.Flush()

		switch args[0] {
		case "apps":
			apps, err := c.store.ListApps()
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "NAME\tCREATED")
			for _, app := range apps {
				fmt.Fprintf(w, "%s\t%s\n", app.Name, app.CreatedAt.Format(time.RFC3339))
			}
		case "hosts":
			hosts, err := c.store.ListHosts()
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "ID\tALIAS\tSTATUS")
			for _, host := range hosts {
				fmt.Fprintf(w, "%s\t%s\t%s\n", host.ID(), host.Alias, host.Status)
			}
		case "deployments":
			deployments, err := c.store.ListDeployments()
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "ID\tHOSTS\tSTATUS PORT\tENDPOINT")
			for _, dep := range deployments {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", dep.ID(), len(dep.Hosts),
					dep.StatusPort, dep.StatusEndpoint)
			}
		case "containers":
			containers, err := c.store.ListContainers()
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "ID\tHOST\tIMAGE\tSTATE\tSTATUS")
			for _, container := range containers {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", shortID(container.ID),
					container.HostID, container.ImageRef, container.State, container.Status)
			}
		}
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func init() {
	rootCmd.AddCommand(getCmd)
}
