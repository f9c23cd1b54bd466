package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tbxark/intakeagent/agent"
	"github.com/tbxark/intakeagent/types"
)

const chatHelp = `Commands: /undo, /more (add details), /submit, /reset, /form <complaint|feedback>, /view, /quit`

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Fill a form in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			formName, _ := cmd.Flags().GetString("form")
			formType := types.FormType(formName)
			if !formType.Valid() {
				return fmt.Errorf("unknown form type %q", formName)
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			id := uuid.NewString()
			ctx = agent.WithStateKey(ctx, id)
			resp, err := a.sessions.Start(ctx, id, formType)
			if err != nil {
				return err
			}
			intake := agent.NewAgent(
				"IntakeAssistant",
				"An agent that collects vehicle complaints and feedback through conversation",
				formType,
				a.sessions,
			)
			runner := adk.NewRunner(ctx, adk.RunnerConfig{Agent: intake})

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, chatHelp)
			fmt.Fprintf(out, "\nAssistant: %s\n", resp.Message)
			reader := bufio.NewReader(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "You: ")
				input, rErr := reader.ReadString('\n')
				if rErr != nil && (rErr != io.EOF || strings.TrimSpace(input) == "") {
					return nil
				}
				input = strings.TrimSpace(input)
				if strings.HasPrefix(input, "/") {
					quit, cErr := runChatCommand(cmd, a, id, input)
					if cErr != nil {
						fmt.Fprintf(out, "\n%v\n", cErr)
					}
					if quit {
						return nil
					}
					continue
				}

				iter := runner.Run(ctx, []adk.Message{schema.UserMessage(input)})
				for {
					event, ok := iter.Next()
					if !ok {
						break
					}
					if event.Err != nil {
						return event.Err
					}
					msg, mErr := event.Output.MessageOutput.GetMessage()
					if mErr != nil {
						return mErr
					}
					fmt.Fprintf(out, "\nAssistant: %s\n======\n", msg.Content)
				}
			}
		},
	}
	cmd.Flags().String("form", string(types.FormComplaint), "Form type: complaint or feedback")
	return cmd
}

func runChatCommand(cmd *cobra.Command, a *app, id, input string) (bool, error) {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	fields := strings.Fields(input)
	var (
		resp *agent.Response
		err  error
	)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/undo":
		resp, err = a.sessions.Undo(ctx, id)
	case "/more":
		resp, err = a.sessions.AddMoreDetails(ctx, id)
	case "/submit":
		resp, err = a.sessions.SubmitRecord(ctx, id)
	case "/reset":
		resp, err = a.sessions.Reset(ctx, id)
	case "/form":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /form <complaint|feedback>")
		}
		resp, err = a.sessions.SwitchFormType(ctx, id, types.FormType(fields[1]))
	case "/view":
		view, vErr := a.sessions.View(ctx, id)
		if vErr != nil {
			return false, vErr
		}
		fmt.Fprintf(out, "\nPhase: %s  Completion: %.0f%%\n", view.Phase, view.Completion*100)
		if view.Summary != "" {
			fmt.Fprintln(out, view.Summary)
		}
		for _, f := range view.Missing {
			fmt.Fprintf(out, "  missing: %s\n", f.Name)
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %s\n%s", fields[0], chatHelp)
	}
	if err != nil {
		return false, err
	}
	fmt.Fprintf(out, "\nAssistant: %s\n", resp.Message)
	if resp.State != nil && resp.State.Phase == types.PhaseReview {
		if view, vErr := a.sessions.View(ctx, id); vErr == nil && view.Summary != "" {
			fmt.Fprintln(out, view.Summary)
		}
	}
	return false, nil
}
