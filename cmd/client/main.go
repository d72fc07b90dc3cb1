// Command client is a line-oriented terminal client for the LAN chat server.
//
// Lines typed on stdin are sent as chat messages; "/quit" disconnects.
// CHAT_SERVER, CHAT_USERNAME and CHAT_PASSWORD preset the connection, and the
// credentials are prompted for when missing.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/99minutos/lanchat/internal/client"
	"github.com/99minutos/lanchat/internal/pkg/config"
	"github.com/99minutos/lanchat/pkg/logger"
)

const quitCommand = "/quit"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "client: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, in io.Reader, out io.Writer) error {
	cfg, err := config.LoadClient(ctx)
	if err != nil {
		return err
	}

	logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: true, Output: os.Stderr})

	lines := bufio.NewScanner(in)
	username := cfg.Username
	if username == "" {
		if username, err = prompt(lines, out, "Username: "); err != nil {
			return err
		}
	}
	password := cfg.Password
	if password == "" {
		if password, err = prompt(lines, out, "Password: "); err != nil {
			return err
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c, err := client.Dial(dialCtx, cfg.Server, client.WithLogger(logger.Component("client")))
	if err != nil {
		return err
	}
	defer c.Close()

	role, err := c.Login(dialCtx, username, password)
	if err != nil {
		var le *client.LoginError
		if errors.As(err, &le) {
			return fmt.Errorf("login failed: %s", le.Reason)
		}
		return err
	}
	fmt.Fprintf(out, "Connected to %s as %s (%s). Type %s to leave.\n", cfg.Server, username, role, quitCommand)

	input := make(chan string)
	go func() {
		defer close(input)
		for lines.Scan() {
			input <- lines.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-input:
			if !ok || strings.TrimSpace(line) == quitCommand {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := c.Send(line); err != nil {
				return err
			}

		case ev, ok := <-c.Events():
			if !ok {
				return nil
			}
			switch ev.Kind {
			case client.EventHistory:
				for _, m := range ev.History {
					printMessage(out, m)
				}
			case client.EventMessage:
				printMessage(out, ev.Message)
			case client.EventDisconnected:
				if ev.Err != nil {
					return fmt.Errorf("disconnected: %w", ev.Err)
				}
				fmt.Fprintln(out, "Disconnected from server.")
				return nil
			}
		}
	}
}

func prompt(lines *bufio.Scanner, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	if !lines.Scan() {
		if err := lines.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(lines.Text()), nil
}

func printMessage(out io.Writer, m client.Message) {
	if m.System {
		fmt.Fprintf(out, "[%s] * %s\n", m.Timestamp, m.Content)
		return
	}
	fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp, m.Username, m.Content)
}
