package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/docqa/internal/chat"
)

const exitWord = "salir"

type replier interface {
	Reply(ctx context.Context, req chat.ReplyRequest) (*chat.Reply, error)
}

func chatCmd(cfgPath func() string) *cobra.Command {
	var (
		sessionID string
		document  string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive question answering; type \"salir\" to exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), cfgPath(), os.Stderr, func(ctx context.Context, a *app) error {
				return runREPL(ctx, a.chat, cmd.InOrStdin(), cmd.OutOrStdout(), sessionID, document, a.cfg.Timeouts.Chat)
			})
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "resume an existing session")
	cmd.Flags().StringVar(&document, "document", "", "explicitly select a document")
	return cmd
}

// runREPL reads one question per line until EOF or the exit word. Each
// turn is bounded by timeout.
func runREPL(ctx context.Context, r replier, in io.Reader, out io.Writer, sessionID, document string, timeout time.Duration) error {
	fmt.Fprintf(out, "Escribe tu pregunta (\"%s\" para terminar).\n", exitWord)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Tú: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(line, exitWord) {
			return nil
		}
		if line == "" {
			continue
		}

		turnCtx, cancel := context.WithTimeout(ctx, timeout)
		reply, err := r.Reply(turnCtx, chat.ReplyRequest{
			SessionID: sessionID,
			Message:   line,
			Document:  document,
		})
		cancel()
		if err != nil {
			fmt.Fprintf(out, "Bot: Error interno del servidor (%v)\n", err)
			continue
		}
		sessionID = reply.SessionID

		fmt.Fprintf(out, "Bot: %s\n", reply.Answer)
		if reply.Focus != "" {
			fmt.Fprintf(out, "     [foco: %s]\n", reply.Focus)
		}
		// the session focus carries the selection from here on
		document = ""
	}
}
