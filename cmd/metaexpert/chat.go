package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hupe1980/metaexpert"
	"github.com/hupe1980/metaexpert/core"
)

func newChatCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive conversation",
		Long: `Start an interactive conversation. Every question is a separate run that
sees the transcript of the previous ones. The transcript lives only as long
as the process. Type "exit" or press Ctrl-D to quit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			p := newPrinter(out, flags.plain)
			scanner := bufio.NewScanner(cmd.InOrStdin())

			var history []core.Message
			for {
				fmt.Fprint(out, color.GreenString("Enter your query: "))
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}

				question := strings.TrimSpace(scanner.Text())
				switch question {
				case "":
					continue
				case "exit", "quit":
					return nil
				}

				st, err := a.me.Run(cmd.Context(), question, metaexpert.WithHistory(history))
				p.answer(st)
				if err != nil {
					// a failed run leaves the conversation where it was
					p.failure(err)
					continue
				}
				history = st.Transcript()
			}
		},
	}
}
