// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/kiln/pkg/cli"
	"github.com/Thermoquad/kiln/pkg/crc"
	"github.com/Thermoquad/kiln/pkg/nvm"
)

// Simulated heater
const (
	ambientTemp = 21.0
	maxSetpoint = 1300.0
	heatingTau  = 90 * time.Second

	// settingsAddr is where save and load keep their record
	settingsAddr = 0
)

// heaterSettings is the persisted part of the controller
type heaterSettings struct {
	Setpoint float64 `cbor:"1,keyasint"`
	Fan      int64   `cbor:"2,keyasint"`
	Mode     byte    `cbor:"3,keyasint"`
}

// controller is the simulated device behind the demo command table. One
// controller is shared by every session of a server.
type controller struct {
	mu       sync.Mutex
	settings heaterSettings
	changed  time.Time
	from     float64
	store    *nvm.Store
	now      func() time.Time
}

func newController(store *nvm.Store) *controller {
	c := &controller{
		settings: heaterSettings{Setpoint: ambientTemp, Mode: 'm'},
		store:    store,
		now:      time.Now,
		from:     ambientTemp,
	}
	c.changed = c.now()
	return c
}

// temperatureLocked follows the setpoint with a first order response
func (c *controller) temperatureLocked() float64 {
	t := c.now().Sub(c.changed).Seconds()
	k := 1 - math.Exp(-t/heatingTau.Seconds())
	return c.from + (c.settings.Setpoint-c.from)*k
}

func (c *controller) setSetpoint(v float64) {
	c.from = c.temperatureLocked()
	c.changed = c.now()
	c.settings.Setpoint = v
}

func modeName(m byte) string {
	switch m {
	case 'a':
		return "auto"
	case 'm':
		return "manual"
	default:
		return "unknown"
	}
}

// commands builds the table served to every session
func (c *controller) commands() cli.Table {
	return cli.Table{
		{
			Name:        "status",
			Handler:     cli.HandlerFunc(c.cmdStatus),
			Summary:     "Show heater state",
			Description: "Prints temperature, setpoint, fan duty and mode.",
			Extra: cli.DescriberFunc(func(con cli.Console) {
				_ = con.Info(fmt.Sprintf("Setpoint range is %.0f to %.0f C", ambientTemp, maxSetpoint))
			}),
		},
		{
			Name:        "setpoint",
			Params:      "f",
			Handler:     cli.HandlerFunc(c.cmdSetpoint),
			Summary:     "Set target temperature",
			Synopsis:    "<celsius>",
			Description: "Sets the temperature the heater ramps towards.",
		},
		{
			Name:        "fan",
			Params:      "d",
			Handler:     cli.HandlerFunc(c.cmdFan),
			Summary:     "Set fan duty",
			Synopsis:    "<percent>",
			Description: "Sets the combustion fan duty, 0 to 100.",
		},
		{
			Name:        "mode",
			Params:      "s",
			Handler:     cli.HandlerFunc(c.cmdMode),
			Summary:     "Select control mode",
			Synopsis:    "<auto|manual>",
			Description: "auto (or a) selects automatic fan control, manual (or m) manual.",
		},
		{
			Name:        "crc",
			Params:      "s",
			Handler:     cli.HandlerFunc(cmdCRC),
			Summary:     "Checksum a word",
			Synopsis:    "<text>",
			Description: "Prints the CRC-16/CCITT-FALSE and CRC-32 of the text.",
		},
		{
			Name:        "save",
			Handler:     cli.HandlerFunc(c.cmdSave),
			Summary:     "Store settings in NVM",
			Description: "Writes setpoint, fan duty and mode to non-volatile memory.",
		},
		{
			Name:        "load",
			Handler:     cli.HandlerFunc(c.cmdLoad),
			Summary:     "Restore settings from NVM",
			Description: "Reads the settings saved with 'save'.",
		},
		{
			Name:        "dump",
			Params:      "xd",
			Handler:     cli.HandlerFunc(c.cmdDump),
			Hidden:      true,
			Summary:     "Hex dump NVM",
			Synopsis:    "<address> <length>",
			Description: "Dumps raw NVM bytes, CRCs included.",
		},
		{
			Name:        "erase",
			Handler:     cli.HandlerFunc(c.cmdErase),
			Hidden:      true,
			Summary:     "Invalidate saved settings",
			Description: "Overwrites the CRC of the settings record.",
		},
		{
			Name:        "expert",
			Params:      "s",
			Handler:     cli.ExpertHelp(),
			Hidden:      true,
			Summary:     "List maintenance commands",
			Synopsis:    "[command]",
			Description: "Shows help including hidden commands.",
		},
	}
}

func (c *controller) cmdStatus(con cli.Console, _ *cli.Args) error {
	c.mu.Lock()
	temp := c.temperatureLocked()
	s := c.settings
	c.mu.Unlock()

	_ = con.Info(fmt.Sprintf("temperature %.1f C", temp))
	_ = con.Info(fmt.Sprintf("setpoint    %.1f C", s.Setpoint))
	_ = con.Info(fmt.Sprintf("fan         %d %%", s.Fan))
	return con.Info(fmt.Sprintf("mode        %s", modeName(s.Mode)))
}

func (c *controller) cmdSetpoint(con cli.Console, args *cli.Args) error {
	if args.Len() != 1 {
		return errors.New("setpoint needs a temperature")
	}
	v := args.At(0).Float()
	if v < ambientTemp || v > maxSetpoint {
		return con.Warn(fmt.Sprintf("setpoint must be between %.0f and %.0f", ambientTemp, maxSetpoint))
	}
	c.mu.Lock()
	c.setSetpoint(v)
	c.mu.Unlock()
	return con.Info(fmt.Sprintf("setpoint %.1f C", v))
}

func (c *controller) cmdFan(con cli.Console, args *cli.Args) error {
	if args.Len() != 1 {
		return errors.New("fan needs a duty")
	}
	v := args.At(0).Int()
	if v < 0 || v > 100 {
		return con.Warn("fan duty must be between 0 and 100")
	}
	c.mu.Lock()
	c.settings.Fan = v
	c.mu.Unlock()
	return con.Info(fmt.Sprintf("fan %d %%", v))
}

// modeChoices alternate auto and manual, long form first
var modeChoices = []string{"auto", "manual", "a", "m"}

func (c *controller) cmdMode(con cli.Console, args *cli.Args) error {
	if args.Len() != 1 {
		return errors.New("mode needs auto or manual")
	}
	i := args.At(0).Choice(modeChoices...)
	if i < 0 {
		return fmt.Errorf("unknown mode %q", args.At(0).Bytes())
	}
	m := modeChoices[i%2][0]
	c.mu.Lock()
	c.settings.Mode = m
	c.mu.Unlock()
	return con.Info("mode " + modeName(m))
}

var crc32Table = crc.MustTable(crc.IEEE32)

func cmdCRC(con cli.Console, args *cli.Args) error {
	if args.Len() != 1 {
		return errors.New("crc needs text")
	}
	data := args.At(0).Bytes()
	c32 := crc32Table.Checksum(data)
	return con.Info(fmt.Sprintf("crc16 0x%04X crc32 0x%08X", crc.Checksum16(data), c32))
}

func (c *controller) cmdSave(con cli.Console, _ *cli.Args) error {
	if c.store == nil {
		return con.Error("no NVM attached")
	}
	c.mu.Lock()
	s := c.settings
	c.mu.Unlock()
	if err := c.store.WriteRecord(settingsAddr, s); err != nil {
		return con.Error(err.Error())
	}
	return con.Info("settings saved")
}

func (c *controller) cmdLoad(con cli.Console, _ *cli.Args) error {
	if c.store == nil {
		return con.Error("no NVM attached")
	}
	var s heaterSettings
	if err := c.store.ReadRecord(settingsAddr, &s); err != nil {
		if errors.Is(err, nvm.ErrCRCMismatch) {
			return con.Warn("no valid settings stored")
		}
		return con.Error(err.Error())
	}
	c.mu.Lock()
	c.setSetpoint(s.Setpoint)
	c.settings = s
	c.mu.Unlock()
	return con.Info(fmt.Sprintf("settings loaded: setpoint %.1f C, fan %d %%, mode %s", s.Setpoint, s.Fan, modeName(s.Mode)))
}

func (c *controller) cmdErase(con cli.Console, _ *cli.Args) error {
	if c.store == nil {
		return con.Error("no NVM attached")
	}
	if err := c.store.EraseRecord(settingsAddr); err != nil {
		if errors.Is(err, nvm.ErrCRCMismatch) {
			return con.Warn("nothing to erase")
		}
		return con.Error(err.Error())
	}
	return con.Info("settings erased")
}

const dumpLimit = 256

func (c *controller) cmdDump(con cli.Console, args *cli.Args) error {
	if args.Len() != 2 {
		return errors.New("dump needs an address and a length")
	}
	if c.store == nil {
		return con.Error("no NVM attached")
	}
	addr, n := args.At(0).Int(), args.At(1).Int()
	dev := c.store.Device()
	if addr < 0 || n <= 0 || n > dumpLimit || addr+n > dev.Size() {
		return con.Warn(fmt.Sprintf("range must lie within %d bytes, at most %d at a time", dev.Size(), dumpLimit))
	}
	buf := make([]byte, n)
	if _, err := dev.ReadAt(buf, addr); err != nil {
		return con.Error(err.Error())
	}

	// hex.Dump ends lines with \n only
	out := strings.ReplaceAll(hex.Dump(buf), "\n", "\r\n")
	if sp, ok := con.(interface{ FreeMessageSpace() int }); ok && sp.FreeMessageSpace() < len(out) {
		return con.Warn("dump does not fit the output buffer")
	}
	_, err := fmt.Fprint(con, out)
	return err
}
