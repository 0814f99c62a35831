package telegram

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// terminalAuth implements auth.UserAuthenticator by prompting on the terminal.
// Only sign-in is supported, accounts must already exist.
type terminalAuth struct {
	phone string
	in    *bufio.Reader
	out   io.Writer
}

func newTerminalAuth(phone string) terminalAuth {
	return terminalAuth{
		phone: phone,
		in:    bufio.NewReader(os.Stdin),
		out:   os.Stdout,
	}
}

func (terminalAuth) SignUp(ctx context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("telegram sign up is not supported, register the account first")
}

func (terminalAuth) AcceptTermsOfService(ctx context.Context, tos tg.HelpTermsOfService) error {
	return &auth.SignUpRequired{TermsOfService: tos}
}

func (a terminalAuth) Code(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
	fmt.Fprintln(a.out, "\nTelegram sent a login code to your account.")
	return a.prompt("Enter code: ")
}

func (a terminalAuth) Phone(_ context.Context) (string, error) {
	if a.phone != "" {
		return a.phone, nil
	}
	return a.prompt("Enter phone in international format (e.g. +1234567890): ")
}

func (a terminalAuth) Password(_ context.Context) (string, error) {
	fmt.Fprint(a.out, "Enter 2FA password: ")
	pwd, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(a.out)
	if err != nil {
		return "", fmt.Errorf("failed to read password with %w", err)
	}
	return strings.TrimSpace(string(pwd)), nil
}

func (a terminalAuth) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
