package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"assetescrow/rpc/client"
)

type command struct {
	summary string
	run     func(args []string, stdout, stderr io.Writer) int
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"register": {"Register the caller with an optional deposit", callerCommand("register", "escrow_register", true)},
		"deposit":  {"Add the attached deposit to the caller's balance", callerCommand("deposit", "escrow_deposit", true)},
		"withdraw": {"Withdraw the caller's whole balance", callerCommand("withdraw", "escrow_withdrawAll", false)},
		"balance":  {"Show the balance of an account", accountCommand("balance", "escrow_getBalance")},
		"user":     {"Show an account with its listed assets", accountCommand("user", "escrow_getUser")},
		"users":    {"List registered account ids", listCommand("users", "escrow_listUsers")},
		"accounts": {"List registered accounts", listCommand("accounts", "escrow_listAccounts")},
		"place":    {"List a token for sale", runPlace},
		"buy":      {"Buy a listed token", runBuy},
		"asset":    {"Show a listed token", tokenCommand("asset", "escrow_getAsset")},
		"assets":   {"List every recorded token", listCommand("assets", "escrow_listAssets")},
		"phase":    {"Show the custody transfer phase of a token", tokenCommand("phase", "escrow_transferPhase")},
		"reset":    {"Start a fresh state version (admin token required)", runReset},
		"version":  {"Show the current state version", listCommand("version", "escrow_version")},
		"receipts": {"List recent continuation receipts", runReceipts},
		"events":   {"List recent contract events", runEvents},
	}
}

func usage() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("Usage:\n  escrow-cli [--rpc URL] [--auth JWT] <command> [flags]\n\nCommands:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %-9s%s\n", name, commands[name].summary)
	}
	return strings.TrimRight(b.String(), "\n")
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) bool {
	if err := fs.Parse(args); err != nil {
		return false
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return false
	}
	return true
}

func printError(w io.Writer, msg string) int {
	fmt.Fprintf(w, "Error: %s\n", msg)
	return 1
}

func requireFlag(stderr io.Writer, name, value string) bool {
	if strings.TrimSpace(value) == "" {
		printError(stderr, "--"+name+" is required")
		return false
	}
	return true
}

func validAmount(stderr io.Writer, name, value string) bool {
	if value == "" {
		return true
	}
	if !isDigits(value) {
		printError(stderr, "--"+name+" must be a non-negative integer")
		return false
	}
	return true
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func callerCommand(name, method string, withDeposit bool) func([]string, io.Writer, io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		fs := newFlagSet(name, stderr)
		caller := fs.String("caller", "", "calling account id")
		var deposit *string
		if withDeposit {
			deposit = fs.String("deposit", "", "attached deposit in base units")
		}
		if !parseFlags(fs, args, stderr) || !requireFlag(stderr, "caller", *caller) {
			return 1
		}
		params := map[string]interface{}{"caller": *caller}
		if deposit != nil && *deposit != "" {
			if !validAmount(stderr, "deposit", *deposit) {
				return 1
			}
			params["deposit"] = *deposit
		}
		return invoke(method, params, stdout, stderr)
	}
}

func accountCommand(name, method string) func([]string, io.Writer, io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		fs := newFlagSet(name, stderr)
		account := fs.String("account", "", "account id")
		if !parseFlags(fs, args, stderr) || !requireFlag(stderr, "account", *account) {
			return 1
		}
		return invoke(method, map[string]interface{}{"account": *account}, stdout, stderr)
	}
}

func tokenCommand(name, method string) func([]string, io.Writer, io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		fs := newFlagSet(name, stderr)
		token := fs.String("token", "", "token id")
		if !parseFlags(fs, args, stderr) || !requireFlag(stderr, "token", *token) {
			return 1
		}
		return invoke(method, map[string]interface{}{"tokenId": *token}, stdout, stderr)
	}
}

func listCommand(name, method string) func([]string, io.Writer, io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if !parseFlags(newFlagSet(name, stderr), args, stderr) {
			return 1
		}
		return invoke(method, nil, stdout, stderr)
	}
}

func runPlace(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("place", stderr)
	var (
		caller, token, price, deposit, memo string
		approval                            int64
	)
	fs.StringVar(&caller, "caller", "", "token owner")
	fs.StringVar(&token, "token", "", "token id")
	fs.StringVar(&price, "price", "", "asking price in base units")
	fs.StringVar(&deposit, "deposit", "", "attached deposit forwarded to the registry")
	fs.StringVar(&memo, "memo", "", "optional transfer memo")
	fs.Int64Var(&approval, "approval", -1, "optional registry approval id")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if !requireFlag(stderr, "caller", caller) || !requireFlag(stderr, "token", token) || !requireFlag(stderr, "price", price) {
		return 1
	}
	if !validAmount(stderr, "price", price) || !validAmount(stderr, "deposit", deposit) {
		return 1
	}
	params := map[string]interface{}{"caller": caller, "tokenId": token, "price": price}
	if deposit != "" {
		params["deposit"] = deposit
	}
	if memo != "" {
		params["memo"] = memo
	}
	if approval >= 0 {
		params["approvalId"] = uint64(approval)
	}
	return invoke("escrow_placeAsset", params, stdout, stderr)
}

func runBuy(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("buy", stderr)
	var caller, token, deposit string
	fs.StringVar(&caller, "caller", "", "buyer account id")
	fs.StringVar(&token, "token", "", "token id")
	fs.StringVar(&deposit, "deposit", "", "payment attached to the purchase")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if !requireFlag(stderr, "caller", caller) || !requireFlag(stderr, "token", token) || !requireFlag(stderr, "deposit", deposit) {
		return 1
	}
	if !validAmount(stderr, "deposit", deposit) {
		return 1
	}
	return invoke("escrow_buyAsset", map[string]interface{}{"caller": caller, "tokenId": token, "deposit": deposit}, stdout, stderr)
}

func runReset(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("reset", stderr)
	caller := fs.String("caller", "", "allow-listed admin account id")
	if !parseFlags(fs, args, stderr) || !requireFlag(stderr, "caller", *caller) {
		return 1
	}
	if err := ensureAdminToken(); err != nil {
		return printError(stderr, err.Error())
	}
	return invoke("escrow_reset", map[string]interface{}{"caller": *caller}, stdout, stderr)
}

func runReceipts(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("receipts", stderr)
	limit := fs.Int("limit", 0, "maximum receipts to return (0 for all retained)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if *limit < 0 {
		return printError(stderr, "--limit must not be negative")
	}
	return invoke("escrow_listReceipts", map[string]interface{}{"limit": *limit}, stdout, stderr)
}

func runEvents(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("events", stderr)
	limit := fs.Int("limit", 0, "maximum events to return (0 for all retained)")
	prefix := fs.String("prefix", "", "only events whose type starts with prefix")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if *limit < 0 {
		return printError(stderr, "--limit must not be negative")
	}
	params := map[string]interface{}{"limit": *limit}
	if *prefix != "" {
		params["prefix"] = *prefix
	}
	return invoke("escrow_listEvents", params, stdout, stderr)
}

func invoke(method string, params interface{}, stdout, stderr io.Writer) int {
	result, err := rpcCall(context.Background(), method, params)
	if err != nil {
		var rpcErr *client.Error
		if errors.As(err, &rpcErr) {
			fmt.Fprintf(stderr, "RPC error %d: %s\n", rpcErr.Code, rpcErr.Message)
			return 1
		}
		fmt.Fprintf(stderr, "RPC call failed: %v\n", err)
		return 1
	}
	writeResult(stdout, result)
	return 0
}

func writeResult(w io.Writer, result json.RawMessage) {
	if len(result) == 0 {
		fmt.Fprintln(w, "null")
		return
	}
	var pretty interface{}
	if err := json.Unmarshal(result, &pretty); err == nil {
		if formatted, err := json.MarshalIndent(pretty, "", "  "); err == nil {
			result = formatted
		}
	}
	fmt.Fprintln(w, string(result))
}
