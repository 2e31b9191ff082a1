package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/linechat-server/internal/proto"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr     string
		login    string
		password string
		channel  string
	)

	cmd := &cobra.Command{
		Use:          "linechat-client",
		Short:        "Interactive client for the line chat protocol",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var script []string
			if login != "" {
				script = append(script, fmt.Sprintf("%s %s %s", proto.CommandLogin, login, password))
			}
			if channel != "" {
				script = append(script, proto.CommandJoin+" "+channel)
			}
			return run(cmd.Context(), addr, script)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", "localhost:8023", "server address")
	flags.StringVar(&login, "login", "", "sign in with this login before reading stdin")
	flags.StringVar(&password, "password", "", "password for --login")
	flags.StringVar(&channel, "channel", "", "channel to join after signing in")

	return cmd
}

func run(parent context.Context, addr string, script []string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return chat(ctx, addr, script, os.Stdin, os.Stdout)
}

// chat sends script, then every line from in, and prints server lines to out.
// It returns once the server closes the connection or ctx is done.
func chat(ctx context.Context, addr string, script []string, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	context.AfterFunc(ctx, func() { _ = conn.Close() })

	for _, line := range script {
		if _, err := io.WriteString(conn, line+proto.LineTerminator); err != nil {
			return fmt.Errorf("send %q: %w", line, err)
		}
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		defer cancel()
		readLoop(conn, out)
	}()

	writeLoop(ctx, conn, in)
	// Let the server answer what was sent, then wait for it to hang up.
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}
	select {
	case <-readDone:
	case <-ctx.Done():
	}
	return nil
}

func readLoop(conn net.Conn, out io.Writer) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 1024), proto.DefaultMaxLineLength)
	for scanner.Scan() {
		fmt.Fprintln(out, scanner.Text())
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Printf("read error: %v", err)
	}
}

func writeLoop(ctx context.Context, conn net.Conn, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if _, err := io.WriteString(conn, line+proto.LineTerminator); err != nil {
				log.Printf("send error: %v", err)
				return
			}
			if strings.EqualFold(strings.TrimSpace(line), proto.CommandBye) {
				return
			}
		}
	}
}
