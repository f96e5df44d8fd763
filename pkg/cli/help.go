// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cli

import "fmt"

const helpFooter = "\r\nCommand specific help is displayed with 'help <command>'"

// ExpertHelp returns a handler listing the hidden commands of the session's
// table. Register it under whatever name should unlock them.
func ExpertHelp() Handler {
	return HandlerFunc(func(c Console, args *Args) error {
		s, ok := c.(*Session)
		if !ok {
			return fmt.Errorf("expert help needs a session console")
		}
		if args.Len() > 0 {
			return s.helpFor(args.At(0).Bytes())
		}
		s.genericHelp(true)
		return s.Print(SeverityInfo, helpFooter)
	})
}

func (s *Session) cmdHelp(args *Args) error {
	if args.Len() > 0 {
		return s.helpFor(args.At(0).Bytes())
	}
	s.genericHelp(false)
	return s.Print(SeverityInfo, helpFooter)
}

func (s *Session) helpFor(name []byte) error {
	cmd := s.cfg.Commands.Lookup(name)
	if cmd == nil {
		_ = s.printQuoted(SeverityWarn, "Command '", name, "' not found")
		return errNoHelp
	}
	s.commandHelp(cmd)
	return nil
}

// commandHelp renders the detailed help of one command
func (s *Session) commandHelp(cmd *Command) {
	s.ctrl(ctrlNewline)
	s.putBold("\tCOMMAND:\r\n")
	s.putStrings("\t  ", cmd.Name, " - ", cmd.Summary, "\r\n")
	s.ctrl(ctrlCR)

	s.putBold("\n\tSYNOPSIS:\r\n")
	s.putStrings("\t  ", cmd.Name, " ", cmd.Synopsis)
	s.ctrl(ctrlNewline)

	if cmd.Description == "" && cmd.Extra == nil {
		return
	}
	s.putBold("\n\tDESCRIPTION:\r\n")
	if cmd.Description != "" {
		_ = s.PutString(cmd.Description)
	}
	if cmd.Extra != nil {
		cmd.Extra.Describe(s)
	}
	s.ctrl(ctrlNewline)
}

// genericHelp lists either the visible or the hidden commands in two
// columns sized to the longest name in the whole table
func (s *Session) genericHelp(hidden bool) {
	width := 0
	for i := range s.cfg.Commands {
		if n := len(s.cfg.Commands[i].Name); n > width {
			width = n
		}
	}
	width++

	s.ctrl(ctrlBold)
	s.putStrings("\r\n\t ")
	s.putPadded("COMMANDS", width)
	s.putStrings("  PARAMETERS\r\n")
	s.ctrl(ctrlNormal)
	for i := range s.cfg.Commands {
		c := &s.cfg.Commands[i]
		if c.Hidden != hidden {
			continue
		}
		s.putStrings("\t  ")
		s.putPadded(c.Name, width)
		s.putStrings("  ", c.Synopsis, "\r\n")
	}
}
