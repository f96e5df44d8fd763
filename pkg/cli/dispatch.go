// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cli

import (
	"fmt"
	"io"
)

// Console is the output surface handed to command handlers
type Console interface {
	io.Writer
	Print(sev Severity, msg string) error
	Info(msg string) error
	Warn(msg string) error
	Error(msg string) error
	Debug(msg string) error
}

// Handler runs a command. Returning an error tells the user the command
// was used incorrectly; it is not treated as an engine fault.
type Handler interface {
	Handle(c Console, args *Args) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(c Console, args *Args) error

// Handle calls f(c, args)
func (f HandlerFunc) Handle(c Console, args *Args) error {
	return f(c, args)
}

// Describer adds generated text to a command's detailed help
type Describer interface {
	Describe(c Console)
}

// DescriberFunc adapts a function to Describer
type DescriberFunc func(c Console)

// Describe calls f(c)
func (f DescriberFunc) Describe(c Console) {
	f(c)
}

// Command is one entry of a dispatch table.
//
// Params is a pattern with one character per positional argument:
// s/S string, f/F float, d/D/x/X integer (decimal, 0x hex, 0o octal or
// 0b binary), c/C single character.
type Command struct {
	Name        string
	Params      string
	Handler     Handler
	Hidden      bool
	Summary     string
	Synopsis    string
	Description string
	Extra       Describer
}

// Table is a read-only list of commands searched in order
type Table []Command

// Lookup returns the first command whose name equals name ignoring ASCII
// case, or nil
func (t Table) Lookup(name []byte) *Command {
	for i := range t {
		if len(t[i].Name) == len(name) && equalFoldASCII(name, t[i].Name) {
			return &t[i]
		}
	}
	return nil
}

// Validate checks a table against the argument slots available. Names must
// be non-empty and unique ignoring case.
func (t Table) Validate(maxParams int) error {
	for i := range t {
		c := &t[i]
		switch {
		case c.Name == "":
			return fmt.Errorf("%w: entry %d has no name", ErrInvalidTable, i)
		case c.Handler == nil:
			return fmt.Errorf("%w: %q has no handler", ErrInvalidTable, c.Name)
		case len(c.Params) > maxParams:
			return fmt.Errorf("%w: %q takes %d parameters, max %d", ErrInvalidTable, c.Name, len(c.Params), maxParams)
		case !validPattern(c.Params):
			return fmt.Errorf("%w: %q has parameter pattern %q", ErrInvalidTable, c.Name, c.Params)
		}
		if first := t.Lookup([]byte(c.Name)); first != c {
			return fmt.Errorf("%w: %q", ErrDuplicateCommand, c.Name)
		}
	}
	return nil
}

type builtin struct {
	name        string
	params      string
	interactive bool
	run         func(s *Session, a *Args) error
}

// builtins are matched case-sensitively before the user table
var builtins = [...]builtin{
	{name: "help", params: "s", run: (*Session).cmdHelp},
	{name: "echo", params: "ss", run: (*Session).cmdEcho},
	{name: "exit", params: "", interactive: true, run: (*Session).cmdExit},
}

// dispatch tokenizes line in place and runs the matching command. Output
// that does not fit is cut at a write boundary and followed by a notice.
func (s *Session) dispatch(line []byte) error {
	held := s.holdNotice()
	err := s.dispatchLine(line)
	return s.releaseNotice(held, err)
}

func (s *Session) dispatchLine(line []byte) error {
	s.args.reset()
	tok := tokenizer{rest: line}
	name := tok.next(commandDelims)
	if name == nil {
		return nil
	}
	s.stats.linesDispatched++

	for i := range builtins {
		b := &builtins[i]
		if b.interactive && !s.cfg.AllowExit {
			continue
		}
		if string(name) == b.name {
			_ = s.parseArgs(&tok, b.params)
			return b.run(s, &s.args)
		}
	}

	cmd := s.cfg.Commands.Lookup(name)
	if cmd == nil {
		s.stats.notFound++
		_ = s.printQuoted(SeverityWarn, "Command '", name, "' not found")
		return errCommandNotFound
	}

	err := s.parseArgs(&tok, cmd.Params)
	if err == nil {
		err = cmd.Handler.Handle(s, &s.args)
	}
	if err != nil {
		s.stats.usageErrors++
		_ = s.printQuoted(SeverityInfo, "Incorrect usage: Enter 'help ", name, "' for details")
		return errIncorrectUsage
	}
	return nil
}

// parseArgs converts the arguments, then reports every leftover token
func (s *Session) parseArgs(tok *tokenizer, pattern string) error {
	err := scanArgs(&s.args, tok, pattern)
	if err != nil {
		_ = s.Print(SeverityInfo, "Invalid Arguments")
	}
	for extra := tok.next(commandDelims); extra != nil; extra = tok.next(commandDelims) {
		_ = s.printQuoted(SeverityWarn, "Extra parameter '", extra, "' ignored")
	}
	return err
}
