package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// prompter reads answers from the user. Passwords are read without echo when
// the input is a terminal and as plain lines otherwise.
type prompter struct {
	reader *bufio.Reader
	file   *os.File
	out    io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{reader: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok {
		p.file = f
	}
	return p
}

// Line prints prompt and reads one trimmed line. A partial line before EOF is returned.
func (p *prompter) Line(prompt string) (string, error) {
	if _, err := fmt.Fprint(p.out, prompt+": "); err != nil {
		return "", err
	}
	line, err := p.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Password prints prompt and reads a secret.
func (p *prompter) Password(prompt string) (string, error) {
	if p.file == nil || !isTerminal(int(p.file.Fd())) {
		return p.Line(prompt)
	}
	if _, err := fmt.Fprint(p.out, prompt+": "); err != nil {
		return "", err
	}
	pw, err := readPassword(int(p.file.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
