package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newAskCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question",
		Long: `Answer a single question and exit. Without an argument the question is
read from standard input.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			if question == "" {
				q, err := prompt(cmd.InOrStdin(), cmd.OutOrStdout(), "Enter your query: ")
				if err != nil {
					return err
				}
				question = q
			}
			if strings.TrimSpace(question) == "" {
				return errors.New("empty question")
			}

			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			p := newPrinter(cmd.OutOrStdout(), flags.plain)

			st, err := a.me.Run(cmd.Context(), question)
			p.answer(st)
			if err != nil {
				p.failure(err)
				return err
			}
			return nil
		},
	}
}

// prompt prints label and reads one line.
func prompt(in io.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, color.GreenString(label))

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
