package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// InteractiveApprover asks the user to type the target back before a
// destructive step.
type InteractiveApprover struct {
	verbose bool
	input   io.Reader
	output  io.Writer
}

// NewInteractiveApprover creates an InteractiveApprover on stdin and stderr.
func NewInteractiveApprover(verbose bool) csvingest.Approver {
	return &InteractiveApprover{verbose: verbose, input: os.Stdin, output: os.Stderr}
}

// RequestApproval prompts for target and approves on an exact match.
func (a *InteractiveApprover) RequestApproval(ctx context.Context, target string) (bool, error) {
	fmt.Fprintf(a.output, "\nWARNING: replay empties the ingestion folders of %s\n", target)
	fmt.Fprintln(a.output, "Files promoted there outside the landing zone will permanently disappear.")
	fmt.Fprintf(a.output, "\nTo confirm, type '%s' and press Enter: ", target)

	inputChan := make(chan string, 1)
	errChan := make(chan error, 1)

	go func() {
		input, err := bufio.NewReader(a.input).ReadString('\n')
		if err != nil {
			errChan <- err
			return
		}
		inputChan <- strings.TrimSpace(input)
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-errChan:
		return false, fmt.Errorf("failed to read input: %w", err)
	case input := <-inputChan:
		if input == target {
			fmt.Fprintln(a.output, "Confirmed. Proceeding with replay...")
			return true, nil
		}
		fmt.Fprintf(a.output, "Input '%s' does not match '%s'. Replay cancelled.\n", input, target)
		return false, nil
	}
}

var _ csvingest.Approver = (*InteractiveApprover)(nil)
