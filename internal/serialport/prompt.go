package serialport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxPromptAttempts is how many invalid answers are tolerated.
const maxPromptAttempts = 3

// LinePrompter asks on a terminal: it prints a numbered list to Out and
// reads the choice from In. An empty line or EOF means no selection.
type LinePrompter struct {
	In  io.Reader
	Out io.Writer
}

// Choose implements Prompter.
func (lp LinePrompter) Choose(ctx context.Context, ports []PortInfo) (PortInfo, error) {
	if len(ports) == 0 {
		return PortInfo{}, ErrNoDevice
	}

	fmt.Fprintln(lp.Out, "Chọn cổng kết nối thiết bị:")
	for i, p := range ports {
		fmt.Fprintf(lp.Out, "  %d) %s\n", i+1, p)
	}

	// While stdin stays blocked the reader goroutine outlives the prompt;
	// it ends at the next line or EOF.
	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(lp.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	for attempt := 0; attempt < maxPromptAttempts; attempt++ {
		fmt.Fprintf(lp.Out, "Số thứ tự [1-%d]: ", len(ports))

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			return PortInfo{}, ctx.Err()
		case line, ok = <-lines:
		}

		text := strings.TrimSpace(line)
		if !ok || text == "" {
			return PortInfo{}, ErrNoSelection
		}
		if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(ports) {
			return ports[n-1], nil
		}
		fmt.Fprintln(lp.Out, "Lựa chọn không hợp lệ.")
	}
	return PortInfo{}, ErrNoSelection
}
