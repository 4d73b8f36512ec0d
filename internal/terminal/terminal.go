// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package terminal provides prompts and line clearing for interactive commands.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/term"
)

// Width returns the terminal width of stdout, or 80 when unknown.
func Width() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ReadLine prints prompt to stderr and reads one line from stdin.
func ReadLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	return readLine(os.Stdin)
}

// ReadSecret prints prompt to stderr and reads a line from stdin without
// echo. When stdin is not a terminal the line is read as-is so secrets can
// be piped in.
func ReadSecret(prompt string) (string, error) {
	return readSecret(os.Stdin, os.Stderr, prompt)
}

func readSecret(in *os.File, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return readLine(in)
	}
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ClearPreviousLines erases text that was just echoed, such as a prompt and
// the answer typed after it. The line the cursor moved to after Enter is
// cleared too.
func ClearPreviousLines(textLength int) {
	lines := int(math.Ceil(float64(textLength) / float64(Width())))
	if lines < 1 {
		lines = 1
	}
	lines++
	for i := 0; i < lines; i++ {
		fmt.Print("\r\x1b[2K")
		if i < lines-1 {
			fmt.Print("\x1b[1A")
		}
	}
}
