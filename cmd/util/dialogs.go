package util

import (
	"bufio"
	"fmt"
	"github.com/ValentinKolb/dSync/lib/world"
	"io"
	"strings"
	"sync"
)

// AnswerPolicy decides how ConsoleDialogs answers yes/no questions
type AnswerPolicy string

const (
	AnswerAccept AnswerPolicy = "accept"
	AnswerReject AnswerPolicy = "reject"
	AnswerAsk    AnswerPolicy = "ask"
)

// ParseAnswerPolicy converts a flag value to an AnswerPolicy
func ParseAnswerPolicy(s string) (AnswerPolicy, error) {
	switch p := AnswerPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case AnswerAccept, AnswerReject, AnswerAsk:
		return p, nil
	default:
		return "", fmt.Errorf("invalid answer policy: %s (expected one of: accept, reject, ask)", s)
	}
}

// ConsoleDialogs implements world.IDialogs for the command line.
// Questions are answered by the policy, with AnswerAsk a line is read from in.
type ConsoleDialogs struct {
	mu     sync.Mutex
	askMu  sync.Mutex // one question at a time
	out    io.Writer
	in     *bufio.Reader
	policy AnswerPolicy
}

// NewConsoleDialogs creates dialogs writing to out and reading answers from in
func NewConsoleDialogs(out io.Writer, in io.Reader, policy AnswerPolicy) *ConsoleDialogs {
	return &ConsoleDialogs{out: out, in: bufio.NewReader(in), policy: policy}
}

func (d *ConsoleDialogs) PushWaiting(id string, message string) {
	d.printf("[%s] %s\n", shortID(id), message)
}

func (d *ConsoleDialogs) PopWaiting(string) {}

func (d *ConsoleDialogs) Notify(message string, kind world.NoticeKind) {
	d.printf("%-7s %s\n", kind.String()+":", message)
}

// AskYesNo answers asynchronously, so the session keeps handling messages
// while the user thinks
func (d *ConsoleDialogs) AskYesNo(message string, yes func(), no func()) {
	switch d.policy {
	case AnswerAccept:
		d.printf("%s yes\n", message)
		go yes()
	case AnswerReject:
		d.printf("%s no\n", message)
		go no()
	default:
		go func() {
			d.askMu.Lock()
			d.printf("%s [y/N] ", message)
			line, _ := d.in.ReadString('\n')
			d.askMu.Unlock()

			if answer := strings.ToLower(strings.TrimSpace(line)); answer == "y" || answer == "yes" {
				yes()
			} else {
				no()
			}
		}()
	}
}

func (d *ConsoleDialogs) printf(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = fmt.Fprintf(d.out, format, args...)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
