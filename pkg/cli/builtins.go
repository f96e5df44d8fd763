// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cli

// cmdEcho switches character echo. "echo off off" additionally silences
// every control sequence, which suits a program driving the shell.
func (s *Session) cmdEcho(args *Args) error {
	if args.Len() == 0 {
		if s.echo {
			return s.Print(SeverityInfo, "echo on")
		}
		return s.Print(SeverityInfo, "echo off")
	}

	switch string(args.At(0).Bytes()) {
	case "on":
		s.echo = true
		s.ctrlChars = true
		return s.Print(SeverityInfo, "echo on")
	case "off":
		s.echo = false
		if args.Len() == 2 && string(args.At(1).Bytes()) == "off" {
			s.ctrlChars = false
		}
		return s.Print(SeverityInfo, "echo off")
	default:
		return s.Print(SeverityWarn, "Invalid configuration choice. Usage: echo on/off")
	}
}

func (s *Session) cmdExit(_ *Args) error {
	s.exitRequested = true
	return ErrExit
}
