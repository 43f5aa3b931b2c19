package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/respd/client"
	"github.com/luma/respd/internal/env"
	"github.com/luma/respd/protocol"
)

var (
	// The server to send the command to
	callAddr string

	// How long to wait for the reply
	callTimeout time.Duration
)

func init() {
	flags := CallCmd.PersistentFlags()

	flags.StringVar(&callAddr, "addr", "127.0.0.1:6379", "The address of the server")
	flags.DurationVar(&callTimeout, "timeout", 5*time.Second, "How long to wait for a reply")
}

var CallCmd = &cobra.Command{
	Use:   "call COMMAND [ARGS...]",
	Short: "Send one command to a respd server and print the reply",
	Long: `Send one command to a respd server and print the reply

Usage
	respd call PING
	respd call SET key value
	respd call --addr 10.0.0.1:6379 GET key

`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}

		conn := client.New(zap.NewNop()).WithLimits(conf.Limits())
		if err := conn.Connect(ctx, callAddr); err != nil {
			return err
		}

		defer conn.Disconnect()

		cmdArgs := make([][]byte, len(args))
		for i, arg := range args {
			cmdArgs[i] = []byte(arg)
		}

		reply, err := conn.Do(ctx, cmdArgs...)

		var serverErr *client.ServerError
		if errors.As(err, &serverErr) {
			reply, err = protocol.ErrorReply{Message: serverErr.Message}, nil
		}

		if err != nil {
			return err
		}

		writeReply(cmd.OutOrStdout(), reply, "")
		return nil
	},
}

// writeReply prints v the way redis-cli does.
func writeReply(w io.Writer, v protocol.Value, indent string) {
	switch r := v.(type) {
	case protocol.SimpleString:
		fmt.Fprintln(w, string(r))

	case protocol.ErrorReply:
		fmt.Fprintf(w, "(error) %s\n", r.String())

	case protocol.Integer:
		fmt.Fprintf(w, "(integer) %d\n", int64(r))

	case protocol.BulkString:
		fmt.Fprintln(w, strconv.Quote(string(r)))

	case protocol.Null:
		fmt.Fprintln(w, "(nil)")

	case protocol.Array:
		if len(r) == 0 {
			fmt.Fprintln(w, "(empty array)")
			return
		}

		width := len(strconv.Itoa(len(r)))
		for i, elem := range r {
			prefix := fmt.Sprintf("%*d) ", width, i+1)
			if i > 0 {
				fmt.Fprint(w, indent)
			}

			fmt.Fprint(w, prefix)
			writeReply(w, elem, indent+strings.Repeat(" ", len(prefix)))
		}
	}
}
