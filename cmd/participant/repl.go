package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// group is the subset of participant.Participant the prompt drives.
type group interface {
	Register(ctx context.Context, port int) (string, error)
	Deregister(ctx context.Context) (string, error)
	Disconnect(ctx context.Context) (string, error)
	Reconnect(ctx context.Context, port int) (string, error)
	Msend(ctx context.Context, message string) (string, error)
}

const usage = `commands:
  register <port>    join the group, receiving messages on <port>
  deregister         leave the group
  disconnect         stop receiving; messages are kept for you
  reconnect <port>   resume receiving on <port>
  msend <message>    send <message> to every participant
  quit               exit`

var errQuit = errors.New("quit")

// runPrompt reads commands from in until EOF, quit, or ctx is cancelled.
func runPrompt(ctx context.Context, in io.Reader, out io.Writer, g group) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		fmt.Fprint(out, "> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			line = l
		}

		ack, err := execute(ctx, line, g)
		switch {
		case errors.Is(err, errQuit):
			return nil
		case err != nil:
			fmt.Fprintln(out, err)
		case ack != "":
			fmt.Fprintln(out, ack)
		}
	}
}

// execute runs one command line and returns the coordinator's
// acknowledgment.
func execute(ctx context.Context, line string, g group) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "register":
		port, err := parsePort(rest)
		if err != nil {
			return "", err
		}
		return g.Register(ctx, port)
	case "deregister":
		return g.Deregister(ctx)
	case "disconnect":
		return g.Disconnect(ctx)
	case "reconnect":
		port, err := parsePort(rest)
		if err != nil {
			return "", err
		}
		return g.Reconnect(ctx, port)
	case "msend":
		if rest == "" {
			return "", errors.New("usage: msend <message>")
		}
		return g.Msend(ctx, rest)
	case "quit", "exit":
		return "", errQuit
	case "help":
		return usage, nil
	default:
		return "", fmt.Errorf("unknown command %q\n%s", name, usage)
	}
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return port, nil
}
