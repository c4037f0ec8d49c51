package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"assetescrow/rpc/client"
)

var rpcEndpoint = defaultRPCEndpoint() // Defaults to localhost, can be overridden via ESCROW_RPC_URL or --rpc flag
var rpcAuthToken = os.Getenv(tokenEnv)

// rpcCall is swapped out in tests.
var rpcCall = func(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	var out json.RawMessage
	if err := client.New(rpcEndpoint, rpcAuthToken).Call(ctx, method, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func main() {
	args, err := applyGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(run(args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
	return cmd.run(args[1:], stdout, stderr)
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("ESCROW_RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8547/rpc"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--rpc" || arg == "--auth":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for %s", arg)
			}
			if arg == "--rpc" {
				rpcEndpoint = args[i+1]
			} else {
				rpcAuthToken = args[i+1]
			}
			i++
		case strings.HasPrefix(arg, "--rpc="):
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
		case strings.HasPrefix(arg, "--auth="):
			rpcAuthToken = strings.TrimPrefix(arg, "--auth=")
		default:
			out = append(out, arg)
		}
	}
	return out, nil
}
