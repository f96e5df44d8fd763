// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/Thermoquad/kiln/pkg/nvm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var nvmFile string

var nvmCmd = &cobra.Command{
	Use:   "nvm",
	Short: "Inspect the NVM image used by served shells",
}

var nvmShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved heater settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, dev, err := openStore()
		if err != nil {
			return err
		}
		defer dev.Close()

		var s heaterSettings
		if err := store.ReadRecord(settingsAddr, &s); err != nil {
			if errors.Is(err, nvm.ErrCRCMismatch) {
				fmt.Printf("No valid settings in %s\n", cfg.NVM.File)
				return nil
			}
			return err
		}
		out := struct {
			Setpoint float64 `yaml:"setpoint"`
			Fan      int64   `yaml:"fan"`
			Mode     string  `yaml:"mode"`
		}{s.Setpoint, s.Fan, modeName(s.Mode)}
		return yaml.NewEncoder(os.Stdout).Encode(out)
	},
}

var nvmEraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Invalidate the saved heater settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, dev, err := openStore()
		if err != nil {
			return err
		}
		defer dev.Close()

		if err := store.EraseRecord(settingsAddr); err != nil {
			if errors.Is(err, nvm.ErrCRCMismatch) {
				fmt.Printf("Nothing to erase in %s\n", cfg.NVM.File)
				return nil
			}
			return err
		}
		if err := dev.Sync(); err != nil {
			return err
		}
		fmt.Printf("Settings erased in %s\n", cfg.NVM.File)
		return nil
	},
}

func init() {
	nvmCmd.PersistentFlags().StringVar(&nvmFile, "file", "", "NVM image file")
	bindFlag(nvmCmd, "nvm.file", "file")
	nvmCmd.AddCommand(nvmShowCmd)
	nvmCmd.AddCommand(nvmEraseCmd)
	rootCmd.AddCommand(nvmCmd)
}

func openStore() (*nvm.Store, *nvm.FileDevice, error) {
	dev, err := nvm.OpenFileDevice(cfg.NVM.File, cfg.NVM.Size)
	if err != nil {
		return nil, nil, err
	}
	return nvm.NewStore(dev, nvm.Config{}), dev, nil
}
