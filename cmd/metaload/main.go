package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aced-idp/metaload/internal/migrate"
	"github.com/aced-idp/metaload/internal/util"
	"github.com/aced-idp/metaload/pkg/graphload"
	"github.com/aced-idp/metaload/pkg/logger"
	"github.com/aced-idp/metaload/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	if err := rootCmd().Execute(); err != nil {
		logger.Error("Command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "metaload",
		Short:         "Bulk-load entity graph exports into the metadata store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(uploadCmd(), ensureProjectCmd(), emptyCmd(), migrateCmd())
	return root
}

func uploadCmd() *cobra.Command {
	params := graphload.UploadParams{}
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Load ndjson exports into the graph tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return graphload.Upload(cmd.Context(), params)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&params.SourcePath, "source_path", "", "Directory containing *.ndjson export files")
	flags.StringVar(&params.Program, "program", "", "Program name")
	flags.StringVar(&params.Project, "project", "", "Project code")
	flags.StringVar(&params.DictionaryPath, "dictionary_path", "", "Data dictionary directory or URL")
	flags.StringVar(&params.ConfigPath, "config_path", "", "Yaml config with dependency_order")
	markRequired(cmd, "source_path", "program", "project", "dictionary_path", "config_path")
	return cmd
}

func ensureProjectCmd() *cobra.Command {
	var program, project string
	cmd := &cobra.Command{
		Use:   "ensure-project",
		Short: "Create the program and project root vertices if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := graphload.Connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close(cmd.Context())

			projectNodeID, err := graphload.EnsureProject(cmd.Context(), conn, program, project)
			if err != nil {
				return err
			}
			logger.Info("Program and project exist", "project_id", program+"-"+project, "project_node_id", projectNodeID)
			return nil
		},
	}
	cmd.Flags().StringVar(&program, "program", "", "Program name")
	cmd.Flags().StringVar(&project, "project", "", "Project code")
	markRequired(cmd, "program", "project")
	return cmd
}

func emptyCmd() *cobra.Command {
	params := graphload.EmptyParams{}
	cmd := &cobra.Command{
		Use:   "empty",
		Short: "Remove all of a project's rows from the graph tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return graphload.EmptyProject(cmd.Context(), params)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&params.Program, "program", "", "Program name")
	flags.StringVar(&params.Project, "project", "", "Project code")
	flags.StringVar(&params.DictionaryPath, "dictionary_path", "", "Data dictionary directory or URL")
	flags.StringVar(&params.ConfigPath, "config_path", "", "Yaml config with dependency_order")
	markRequired(cmd, "program", "project", "dictionary_path", "config_path")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the structural program, project, and lock tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate.Up(util.GetEnv("DATABASE_URL"))
		},
	}
}

func markRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		cobra.CheckErr(cmd.MarkFlagRequired(name))
	}
}
