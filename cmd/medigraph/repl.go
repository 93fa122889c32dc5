package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

const banner = `MediGraph diagnostic assistant
Describe your symptoms. Commands: /new starts over, /forget deletes this conversation, quit exits.
This tool does not replace a doctor. In an emergency call 119.`

// runREPL reads one message per line and prints each turn's progress and
// reply.
func runREPL(ctx context.Context, svc chatService, conversationID string, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, banner)
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case isQuit(line):
			return nil
		case line == cmdNew:
			conversationID = ""
			fmt.Fprintln(out, "Started a new conversation.")
			continue
		case line == cmdForget:
			if conversationID != "" {
				if err := svc.Forget(ctx, conversationID); err != nil {
					fmt.Fprintf(out, "Could not delete the conversation: %v\n", err)
					continue
				}
			}
			conversationID = ""
			fmt.Fprintln(out, "Conversation deleted.")
			continue
		}

		turn, err := svc.Stream(ctx, conversationID, line)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		for step, err := range turn.Steps() {
			if err != nil {
				break
			}
			fmt.Fprintf(out, "  · %s\n", stageLabel(step.Stage))
		}
		reply, err := turn.Reply()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		conversationID = reply.ConversationID
		fmt.Fprintf(out, "\nMediGraph: %s\n", formatReply(reply))
	}
	return scanner.Err()
}
