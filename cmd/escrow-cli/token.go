package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

const tokenEnv = "ESCROW_RPC_TOKEN"

// adminTokenPrompt is swapped out in tests.
var adminTokenPrompt = promptAdminToken

// promptAdminToken reads the admin JWT from the terminal without echo.
func promptAdminToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("admin token required; pass --auth or set %s", tokenEnv)
	}
	fmt.Fprint(os.Stderr, "Enter admin JWT: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", errors.New("admin token cannot be empty")
	}
	return token, nil
}

// ensureAdminToken fills rpcAuthToken for administrative commands.
func ensureAdminToken() error {
	if strings.TrimSpace(rpcAuthToken) != "" {
		return nil
	}
	token, err := adminTokenPrompt()
	if err != nil {
		return err
	}
	rpcAuthToken = token
	return nil
}
