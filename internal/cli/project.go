package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ynput/ayonfixt/pkg/ayontest"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage test projects on the AYON server",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a populated test project and leave it on the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		client, err := connect(cmd, cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		printer := ayontest.NewPrinter(cmd.ErrOrStderr(), "", newLogger(cmd))
		info, err := ayontest.CreateProject(cmd.Context(), client, cfg.Project, printer)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "project  %s (%s)\n", info.ProjectName, info.ProjectCode)
		fmt.Fprintf(out, "folder   %s %s\n", info.Folder.ID, info.Folder.Name)
		fmt.Fprintf(out, "task     %s %s\n", info.Task.ID, info.Task.Name)
		fmt.Fprintf(out, "product  %s %s\n", info.Product.ID, info.Product.Name)
		fmt.Fprintf(out, "version  %s %s\n", info.Version.ID, info.Version.Name)
		for _, rep := range info.Representations {
			fmt.Fprintf(out, "repr     %s %s\n", rep.ID, rep.Name)
		}
		for _, link := range info.Links {
			fmt.Fprintf(out, "link     %s\n", link)
		}
		return nil
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <name>...",
	Short: "Delete projects from the AYON server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		client, err := connect(cmd, cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		for _, name := range args {
			if err := client.DeleteProject(cmd.Context(), name); err != nil {
				return fmt.Errorf("failed to delete project %s: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", name)
		}
		return nil
	},
}

func init() {
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectDeleteCmd)
	rootCmd.AddCommand(projectCmd)
}
