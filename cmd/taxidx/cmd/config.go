package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/taxidx/configs"
	"github.com/Aman-CERP/taxidx/internal/config"
	"github.com/Aman-CERP/taxidx/internal/errors"
	"github.com/Aman-CERP/taxidx/internal/output"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage taxidx configuration",
		Long: `Manage taxidx configuration files.

Configuration is resolved in order of increasing precedence:
  1. Built-in defaults
  2. User config: ~/.config/taxidx/config.yaml
  3. Project config: ./.taxidx.yaml, or the file given by --config
  4. Environment variables (TAXIDX_*)
  5. Command-line flags`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd(a))
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force bool
		path  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the commented example configuration",
		Long: `Write the commented example configuration to the user config location
(~/.config/taxidx/config.yaml) or to --path. An existing file is kept
unless --force is given, in which case it is backed up first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				path = config.GetUserConfigPath()
			}
			return runConfigInit(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file (a backup is kept)")
	cmd.Flags().StringVar(&path, "path", "", "Write to this file instead of the user config")

	return cmd
}

func runConfigInit(cmd *cobra.Command, path string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warningf("Config already exists: %s", path)
			out.Status("", "Use --force to overwrite")
			return nil
		}
		backup, err := config.BackupFile(path)
		if err != nil {
			return errors.IOError("failed to back up existing config", err)
		}
		if backup != "" {
			out.Statusf("→", "Backed up existing config to %s", backup)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.IOError("failed to create config directory", err)
	}
	if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0644); err != nil {
		return errors.IOError("failed to write config", err)
	}

	out.Successf("Wrote %s", path)
	return nil
}

func newConfigShowCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			if jsonOutput {
				data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(a.cfg, "", "  ")
				if err != nil {
					return errors.InternalError("failed to encode config", err)
				}
				_, err = fmt.Fprintln(w, string(data))
				return err
			}
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return errors.InternalError("failed to encode config", err)
			}
			_, err = w.Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print configuration file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			user := config.GetUserConfigPath()
			fmt.Fprintf(w, "user:    %s%s\n", user, existsMark(user))

			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			if project := config.FindProjectConfig(cwd); project != "" {
				fmt.Fprintf(w, "project: %s (exists)\n", project)
			} else {
				fmt.Fprintf(w, "project: %s\n", filepath.Join(cwd, config.ProjectFileNames[0]))
			}

			backups, err := config.ListBackups(user)
			if err != nil {
				return errors.IOError("failed to list backups", err)
			}
			for _, b := range backups {
				fmt.Fprintf(w, "backup:  %s\n", b)
			}
			return nil
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "restore [backup]",
		Short: "Restore the user config from a backup",
		Long: `Restore a config file from one of its backups. Without an argument the
newest backup is used. The current file is backed up before it is replaced.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = config.GetUserConfigPath()
			}
			backup := ""
			if len(args) == 1 {
				backup = args[0]
			} else {
				backups, err := config.ListBackups(path)
				if err != nil {
					return errors.IOError("failed to list backups", err)
				}
				if len(backups) == 0 {
					return errors.New(errors.ErrCodeConfigNotFound,
						fmt.Sprintf("no backups of %s", path), nil)
				}
				backup = backups[0]
			}
			if err := config.RestoreBackup(path, backup); err != nil {
				return errors.IOError("failed to restore config", err)
			}
			output.New(cmd.OutOrStdout()).Successf("Restored %s from %s", path, backup)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Config file to restore (default: user config)")

	return cmd
}

func existsMark(path string) string {
	if _, err := os.Stat(path); err == nil {
		return " (exists)"
	}
	return ""
}
