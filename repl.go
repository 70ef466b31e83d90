package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/RichardoC/aip-chat/internal/app"
	"github.com/RichardoC/aip-chat/internal/auth"
	"github.com/RichardoC/aip-chat/internal/chat"
	"github.com/RichardoC/aip-chat/internal/models"
	"github.com/fatih/color"
)

const helpText = `Commands:
  /new         start a new chat
  /list        list chats
  /open N      open chat N from the list
  /close       leave the current chat
  /delete N    delete chat N
  /remote      list chats stored on the backend
  /logout      sign out
  /quit        exit
Anything else is sent as a message.`

type repl struct {
	app *app.App
	in  *bufio.Scanner
	out io.Writer

	you, bot, info, errorf, dim func(format string, a ...interface{}) string
}

func newREPL(a *app.App, in *bufio.Scanner, out io.Writer) *repl {
	return &repl{
		app:    a,
		in:     in,
		out:    out,
		you:    color.New(color.FgGreen, color.Bold).SprintfFunc(),
		bot:    color.New(color.FgCyan, color.Bold).SprintfFunc(),
		info:   color.New(color.FgYellow).SprintfFunc(),
		errorf: color.New(color.FgRed).SprintfFunc(),
		dim:    color.New(color.Faint).SprintfFunc(),
	}
}

// prompt prints label and reads one line. ok is false at end of input.
func (r *repl) prompt(label string) (line string, ok bool) {
	fmt.Fprint(r.out, label)
	if !r.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(r.in.Text()), true
}

// signIn walks the user through the email, code and magic link screens.
func (r *repl) signIn(ctx context.Context) error {
	fmt.Fprintln(r.out, r.you("AIP Genius"))
	fmt.Fprintln(r.out, r.dim("Sign in with your work email, or type 'signup' to create an account."))

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		flow := r.app.Flow()

		switch flow.Step() {
		case auth.StepAuthenticated:
			user, _ := r.app.Auth().User()
			fmt.Fprintln(r.out, r.info("Signed in as %s", user.Email))
			return nil

		case auth.StepEmail:
			line, ok := r.prompt("Email: ")
			if !ok {
				return io.EOF
			}
			if strings.EqualFold(line, "signup") {
				flow.StartSignUp()
				continue
			}
			r.report(flow.SubmitEmail(ctx, line))

		case auth.StepOTP:
			line, ok := r.prompt("Authenticator code (or 'back'): ")
			if !ok {
				return io.EOF
			}
			if line == "back" {
				flow.Back()
				continue
			}
			if res := flow.SubmitCode(ctx, line); res.OK {
				fmt.Fprintln(r.out, r.info("We sent a sign-in link to %s.", flow.Email()))
			} else {
				r.report(res)
			}

		case auth.StepMagicLink, auth.StepVerifyEmail:
			if err := r.waitForLink(ctx, flow); err != nil {
				return err
			}

		case auth.StepSignUp:
			req, ok := r.readSignUp()
			if !ok {
				return io.EOF
			}
			if res := flow.SubmitSignUp(ctx, req); res.OK {
				fmt.Fprintln(r.out, r.info("Check %s to verify your account.", flow.Email()))
			} else {
				r.report(res)
			}
		}
	}
}

func (r *repl) waitForLink(ctx context.Context, flow *auth.Flow) error {
	line, ok := r.prompt(r.dim("Press Enter once you have opened the link, 'resend' to send again, 'back' to go back: "))
	if !ok {
		return io.EOF
	}

	switch line {
	case "back":
		flow.Back()
		return nil
	case "resend":
		fmt.Fprintln(r.out, r.dim("Sending again..."))
		return flow.SendAgain(ctx)
	}

	if flow.Step() == auth.StepVerifyEmail {
		fmt.Fprintln(r.out, r.dim("Type 'resend' to get a new link."))
		return nil
	}
	done, err := flow.CheckMagicLink(ctx)
	if err != nil {
		return err
	}
	if !done {
		fmt.Fprintln(r.out, r.dim("The link has not been opened yet."))
	}
	return nil
}

func (r *repl) readSignUp() (auth.SignUpRequest, bool) {
	var req auth.SignUpRequest
	fields := []struct {
		label string
		dst   *string
	}{
		{"First name: ", &req.FirstName},
		{"Last name: ", &req.LastName},
		{"Email: ", &req.Email},
		{"Company: ", &req.Company},
		{fmt.Sprintf("Account type [%s]: ", strings.Join(auth.UserTypes, " / ")), &req.UserType},
	}
	for _, f := range fields {
		line, ok := r.prompt(f.label)
		if !ok {
			return req, false
		}
		*f.dst = line
	}

	line, ok := r.prompt("Accept the User Agreement? [y/N]: ")
	if !ok {
		return req, false
	}
	req.AcceptedAgreement = strings.EqualFold(line, "y") || strings.EqualFold(line, "yes")
	return req, true
}

func (r *repl) report(res auth.Result) {
	if !res.OK {
		fmt.Fprintln(r.out, r.errorf("%s", res.Message))
	}
}

// chatLoop reads commands until the user quits or signs out. It returns
// true after a sign-out.
func (r *repl) chatLoop(ctx context.Context) bool {
	if user, ok := r.app.Auth().User(); ok {
		fmt.Fprintln(r.out, r.info("Welcome, %s.", user.Name))
	}
	fmt.Fprintln(r.out, r.dim("Type /help for commands."))
	r.listChats()

	for ctx.Err() == nil {
		session := r.app.Chat()
		if session == nil {
			return true
		}

		label := r.you("You: ")
		if active, ok := session.ActiveChat(); ok {
			label = r.dim("[%s] ", active.Title) + label
		}
		line, ok := r.prompt(label)
		if !ok {
			return false
		}
		if line == "" {
			continue
		}

		cmd, arg := parseCommand(line)
		if quit := r.run(ctx, session, cmd, arg, line); quit {
			return !r.app.Auth().IsAuthenticated()
		}
	}
	return false
}

// run executes one input line and reports whether the loop should end.
func (r *repl) run(ctx context.Context, session *chat.Session, cmd, arg, line string) bool {
	switch cmd {
	case "":
		r.send(ctx, session, line)
	case "help":
		fmt.Fprintln(r.out, helpText)
	case "new":
		c, err := session.CreateNewChat(ctx)
		if err != nil {
			fmt.Fprintln(r.out, r.errorf("Could not create chat: %v", err))
			return false
		}
		fmt.Fprintln(r.out, r.info("Started %q.", c.Title))
	case "list":
		r.listChats()
	case "open":
		c, err := pick(session.Chats(), arg)
		if err != nil {
			fmt.Fprintln(r.out, r.errorf("%v", err))
			return false
		}
		session.SetActiveChat(c.ID)
		r.printChat(c)
	case "close":
		session.CloseActiveChat()
	case "delete":
		c, err := pick(session.Chats(), arg)
		if err != nil {
			fmt.Fprintln(r.out, r.errorf("%v", err))
			return false
		}
		if err := session.DeleteChat(ctx, c.ID); err != nil {
			fmt.Fprintln(r.out, r.errorf("Could not delete chat: %v", err))
			return false
		}
		fmt.Fprintln(r.out, r.info("Deleted %q.", c.Title))
	case "remote":
		r.listRemote(ctx)
	case "logout":
		signOut, err := r.app.Logout(ctx)
		if err != nil {
			fmt.Fprintln(r.out, r.errorf("Sign-out incomplete: %v", err))
		}
		fmt.Fprintln(r.out, r.info("Signed out."))
		if signOut != "" {
			fmt.Fprintln(r.out, r.info("Open this page to end your Keycloak session:"))
			fmt.Fprintln(r.out, signOut)
		}
		return true
	case "quit", "exit":
		return true
	default:
		fmt.Fprintln(r.out, r.errorf("Unknown command /%s. Type /help.", cmd))
	}
	return false
}

// send posts a message, creating a chat first if none is open, and shows a
// typing indicator until the reply lands.
func (r *repl) send(ctx context.Context, session *chat.Session, content string) {
	if _, ok := session.ActiveChat(); !ok {
		if _, err := session.CreateNewChat(ctx); err != nil {
			fmt.Fprintln(r.out, r.errorf("Could not create chat: %v", err))
			return
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		session.SendMessage(ctx, content)
	}()

	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()
	typing := false
wait:
	for {
		select {
		case <-done:
			break wait
		case <-ticker.C:
			if session.IsBotTyping() {
				if !typing {
					fmt.Fprint(r.out, r.dim("AIP Genius is typing"))
					typing = true
				}
				fmt.Fprint(r.out, r.dim("."))
			}
		}
	}
	if typing {
		fmt.Fprintln(r.out)
	}

	active, ok := session.ActiveChat()
	if !ok || len(active.Messages) == 0 {
		return
	}
	last := active.Messages[len(active.Messages)-1]
	if last.Role != models.RoleAssistant {
		fmt.Fprintln(r.out, r.errorf("No reply received. Your message is saved."))
		return
	}
	fmt.Fprintf(r.out, "%s%s\n\n", r.bot("AIP Genius: "), last.Content)
}

func (r *repl) listChats() {
	session := r.app.Chat()
	if session == nil {
		return
	}
	chats := session.Chats()
	if len(chats) == 0 {
		fmt.Fprintln(r.out, r.dim("No chats yet. Type a message to start one."))
		return
	}

	now := time.Now()
	for i, c := range chats {
		fmt.Fprintf(r.out, "%3d. %s %s\n", i+1, c.Title, r.dim("(%s)", chat.FormatRelative(c.UpdatedAt, now)))
	}
}

func (r *repl) listRemote(ctx context.Context) {
	chats, err := r.app.Gateway().FetchChats(ctx)
	if err != nil {
		fmt.Fprintln(r.out, r.errorf("Could not reach the backend: %v", err))
		return
	}
	if len(chats) == 0 {
		fmt.Fprintln(r.out, r.dim("No chats on the backend."))
		return
	}
	now := time.Now()
	for _, c := range chats {
		fmt.Fprintf(r.out, "  %s %s %s\n", c.Title, r.dim("%d messages", len(c.Messages)), r.dim("(%s)", chat.FormatRelative(c.UpdatedAt, now)))
	}
}

func (r *repl) printChat(c models.Chat) {
	fmt.Fprintln(r.out, r.info("%s", c.Title))
	for _, m := range c.Messages {
		label := r.you("You: ")
		if m.Role == models.RoleAssistant {
			label = r.bot("AIP Genius: ")
		}
		fmt.Fprintf(r.out, "%s%s\n", label, m.Content)
	}
}

// parseCommand splits "/open 2" into ("open", "2"). Plain text yields an
// empty command.
func parseCommand(line string) (cmd, arg string) {
	if !strings.HasPrefix(line, "/") {
		return "", ""
	}
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(fields) == 0 {
		return "help", ""
	}
	cmd = strings.ToLower(fields[0])
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}
	return cmd, arg
}

var errNoSuchChat = errors.New("no such chat; use /list to see the numbers")

// pick resolves a 1-based list position.
func pick(chats []models.Chat, arg string) (models.Chat, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(chats) {
		return models.Chat{}, errNoSuchChat
	}
	return chats[n-1], nil
}
