package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/parleychat/parley/client"
)

const clientTimeout = 10 * time.Second

var (
	loginServer   string
	loginUsername string

	loginCmd = &cobra.Command{
		Use:   "login",
		Short: "Exchange credentials for a bearer token",
		Long: `Exchange credentials for a bearer token.

The password is read from the terminal without echo, or from stdin when
piped. On a terminal the token is printed together with a QR code that other
devices can scan to connect; when piped, only the bare token is printed.`,
		RunE: runLogin,
	}
)

func init() {
	loginCmd.Flags().StringVar(&loginServer, "server", serverDefault(), "server base URL")
	loginCmd.Flags().StringVar(&loginUsername, "username", "", "account username")
}

func serverDefault() string {
	if s := os.Getenv("PARLEY_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

func runLogin(cmd *cobra.Command, args []string) error {
	if loginUsername == "" {
		return errors.New("--username is required")
	}

	password, err := readPassword()
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("password must not be empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), clientTimeout)
	defer cancel()

	res, err := client.Login(ctx, loginServer, loginUsername, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		// Piped: emit the bare token for scripting.
		fmt.Println(res.Token)
		return nil
	}

	fmt.Printf("Logged in as %s\n", res.Username)
	fmt.Printf("Token: %s\n", res.Token)

	connect := connectURL(loginServer, res.Token)
	fmt.Printf("\nScan to connect another device:\n%s\n\n", connect)
	qrterminal.GenerateHalfBlock(connect, qrterminal.L, os.Stdout)
	return nil
}

// readPassword hides the input on a terminal and falls back to reading one
// line when stdin is piped.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Password: ")
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func connectURL(server, token string) string {
	q := url.Values{}
	q.Set("server", server)
	q.Set("token", token)
	return "parley://connect?" + q.Encode()
}
