package sweep

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Prompter is the session's one blocking read: a line of operator input in
// answer to a prompt.
type Prompter interface {
	Ask(prompt string) (string, error)
}

// ConsolePrompter reads operator answers from a terminal.
type ConsolePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewConsolePrompter(in io.Reader, out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{in: bufio.NewReader(in), out: out}
}

func (p *ConsolePrompter) Ask(prompt string) (string, error) {
	if _, err := fmt.Fprint(p.out, prompt); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil && strings.TrimSpace(line) == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

type commandKind int

const (
	cmdInvalid commandKind = iota
	cmdDelete
	cmdKeep
	cmdOpen
	cmdSkip
	cmdQuit
)

// parseCommand reads one review command:
//
//	1 3    delete instances 1 and 3
//	c      keep all copies
//	o 2    open instance 2
//	s      skip this file
//	q      quit and sync
//
// Delete indices are deduplicated, first occurrence wins. Anything else is
// invalid and reprompts.
func parseCommand(input string) (commandKind, []int) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return cmdInvalid, nil
	}
	switch input {
	case "c":
		return cmdKeep, nil
	case "s":
		return cmdSkip, nil
	case "q":
		return cmdQuit, nil
	}
	fields := strings.Fields(input)
	if fields[0] == "o" {
		if len(fields) != 2 {
			return cmdInvalid, nil
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return cmdInvalid, nil
		}
		return cmdOpen, []int{n}
	}
	var nums []int
	seen := map[int]bool{}
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return cmdInvalid, nil
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		nums = append(nums, n)
	}
	return cmdDelete, nums
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
