package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func errInvalidFlag(name, value, expected string) error {
	return fmt.Errorf("invalid --%s value %q (expected %s)", name, value, expected)
}

func rootString(cmd *cobra.Command, name string) (string, error) {
	v, err := cmd.Root().PersistentFlags().GetString(name)
	if err != nil {
		return "", fmt.Errorf("failed to get %s flag: %w", name, err)
	}
	return v, nil
}

func rootBool(cmd *cobra.Command, name string) (bool, error) {
	v, err := cmd.Root().PersistentFlags().GetBool(name)
	if err != nil {
		return false, fmt.Errorf("failed to get %s flag: %w", name, err)
	}
	return v, nil
}

func rootInt(cmd *cobra.Command, name string) (int, error) {
	v, err := cmd.Root().PersistentFlags().GetInt(name)
	if err != nil {
		return 0, fmt.Errorf("failed to get %s flag: %w", name, err)
	}
	return v, nil
}

// rootChanged reports whether the user set the persistent flag explicitly.
func rootChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Root().PersistentFlags().Lookup(name)
	return f != nil && f.Changed
}
