package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"jsonopt/internal/config"
	"jsonopt/internal/errors"
)

var (
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default " + config.FileName,
	Long:  "Creates " + config.FileName + " with the default settings in the current directory",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return errors.Wrap(errors.InternalError, "failed to get current directory", err)
	}

	path := filepath.Join(cwd, config.FileName)
	if _, statErr := os.Stat(path); statErr == nil && !initForce {
		// Already initialized is success.
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration already exists at: %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "\nRun 'jsonopt init --force' to overwrite it.")
		return nil
	}

	if err := config.DefaultConfig().Write(path); err != nil {
		return errors.Wrap(errors.InternalError, "failed to write config file", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	fmt.Fprintln(cmd.OutOrStdout(), "\nNext steps:")
	fmt.Fprintln(cmd.OutOrStdout(), "  1. Set accessorFunctionName to the function your code reads JSON keys with")
	fmt.Fprintln(cmd.OutOrStdout(), "  2. Run 'jsonopt build'")
	return nil
}
