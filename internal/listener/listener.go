// Package listener owns the terminal: one readline instance shared by the
// prompt loop and by session events printed while a call is in flight.
package listener

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

// ErrClosed is returned by GetInput on Ctrl+D or Ctrl+C at an empty prompt.
var ErrClosed = errors.New("input closed")

var (
	rl        *readline.Instance
	mu        sync.Mutex
	holdAsync bool
	heldLines []string
)

func Init(prompt, historyFile string) error {
	var err error
	rl, err = readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	return err
}

func Close() {
	if rl != nil {
		_ = rl.Close()
	}
}

// BeginInteractive holds async lines until EndInteractive so a question is
// not interleaved with status output.
func BeginInteractive() {
	mu.Lock()
	holdAsync = true
	mu.Unlock()
}

func EndInteractive() {
	mu.Lock()
	defer mu.Unlock()
	holdAsync = false
	for _, s := range heldLines {
		writeUnlocked(s)
	}
	heldLines = nil
}

func PrintAbove(s string) {
	mu.Lock()
	defer mu.Unlock()
	writeUnlocked(s)
}

func AsyncPrintln(s string) {
	if s == "" {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if holdAsync {
		heldLines = append(heldLines, s)
		return
	}
	writeUnlocked(s)
}

func writeUnlocked(s string) {
	if rl == nil {
		fmt.Println(s)
		return
	}
	_, _ = rl.Write([]byte("\r\n" + s + "\r\n"))
	rl.Refresh()
}

// GetInput reads one trimmed line. Ctrl+C on a non-empty line discards it and
// returns "".
func GetInput() (string, error) {
	if rl == nil {
		return "", ErrClosed
	}
	line, err := rl.Readline()
	switch {
	case errors.Is(err, readline.ErrInterrupt):
		if len(line) == 0 {
			return "", ErrClosed
		}
		return "", nil
	case errors.Is(err, io.EOF):
		return "", ErrClosed
	case err != nil:
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func GetConfirmation(prompt string) string {
	mu.Lock()
	old := rl.Config.Prompt
	rl.SetPrompt(prompt)
	mu.Unlock()

	line, err := rl.Readline()
	if err != nil {
		line = ""
	}
	ans := strings.TrimSpace(strings.ToLower(line))

	mu.Lock()
	rl.SetPrompt(old)
	mu.Unlock()
	return ans
}

func AskYesNo(question string) bool {
	BeginInteractive()
	defer EndInteractive()

	PrintAbove(question + " [y/n]")

	for {
		ans := GetConfirmation("> ")
		if ans == "y" || ans == "yes" {
			return true
		}
		if ans == "n" || ans == "no" || ans == "" {
			return false
		}
		PrintAbove("Please answer y/n.")
	}
}
