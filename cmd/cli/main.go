// Command sable is a CLI client for the sable backup bridge.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	grpcserver "github.com/and161185/sable-sync/internal/server/grpc"
	"github.com/and161185/sable-sync/internal/service"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "sable")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "sable")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (run `sable token`)")
	}
	return tf.AccessToken, nil
}

// ---- grpc dial ----

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

func loadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

type dialOpts struct {
	addr       string
	caPath     string
	skipVerify bool
	plaintext  bool
	bearer     string
}

func dial(o dialOpts) (*grpc.ClientConn, *grpcserver.BackupClient, error) {
	var creds credentials.TransportCredentials
	if o.plaintext {
		creds = insecure.NewCredentials()
	} else {
		c, err := loadTLS(o.caPath, o.skipVerify)
		if err != nil {
			return nil, nil, err
		}
		creds = c
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if o.bearer != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: o.bearer, secure: !o.plaintext}))
	}
	cc, err := grpc.NewClient(o.addr, opts...)
	if err != nil {
		return nil, nil, err
	}
	return cc, grpcserver.NewBackupClient(cc), nil
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

// parseArgs decodes JSON call arguments; empty input means no arguments.
func parseArgs(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("arguments: %w", err)
	}
	return v, nil
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func printValue(w io.Writer, v *structpb.Value) {
	printJSON(w, v.AsInterface())
}

func usage() {
	fmt.Fprintf(os.Stderr, `sable CLI
Usage:
  sable -addr HOST:PORT [-cacert file | -insecure | -plaintext] [-token T] <cmd> [args]

Commands:
  version
  methods                                       (list bridge methods)
  status                                        (account status and availability)
  token  -key <jwt-key> [-sub operator] [-ttl 1h] (mint and save a bearer token)
  call   <method> [-args file.json|-]
  <method> [-args file.json|-]                  (shorthand for call)
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

var bridgeMethods = []string{
	grpcserver.MethodCheckAccountStatus,
	grpcserver.MethodIsAvailable,
	grpcserver.MethodSaveJournalEntry,
	grpcserver.MethodFetchAllJournalEntries,
	grpcserver.MethodBackupJournalEntries,
	grpcserver.MethodSaveGoal,
	grpcserver.MethodFetchAllGoals,
	grpcserver.MethodBackupGoals,
	grpcserver.MethodSaveChatMessage,
	grpcserver.MethodFetchAllChatMessages,
	grpcserver.MethodBackupChatMessages,
	grpcserver.MethodSavePreference,
	grpcserver.MethodFetchAllPreferences,
	grpcserver.MethodDeleteRecord,
}

// main dispatches subcommands and configures TLS/auth for RPC calls.
func main() {
	// global flags
	addr := flag.String("addr", "localhost:8443", "server addr")
	caPath := flag.String("cacert", "", "CA cert (PEM)")
	skipVerify := flag.Bool("insecure", false, "skip cert verify (dev)")
	plaintext := flag.Bool("plaintext", false, "no TLS (dev)")
	token := flag.String("token", "", "bearer token (default: saved token)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	bearer := *token
	if bearer == "" {
		bearer, _ = loadToken()
	}
	opts := dialOpts{addr: *addr, caPath: *caPath, skipVerify: *skipVerify, plaintext: *plaintext, bearer: bearer}

	switch cmd {

	case "version":
		fmt.Printf("sable %s (%s)\n", version, buildDate)

	case "methods":
		for _, m := range slices.Sorted(slices.Values(bridgeMethods)) {
			fmt.Println(m)
		}

	case "token":
		fs := flag.NewFlagSet("token", flag.ExitOnError)
		key := fs.String("key", "", "HS256 signing key (server --jwt-key)")
		sub := fs.String("sub", "operator", "token subject")
		ttl := fs.Duration("ttl", time.Hour, "token lifetime")
		_ = fs.Parse(flag.Args()[1:])
		tok, exp, err := mintToken(*key, *sub, *ttl)
		if err != nil {
			fail(err)
		}
		if err := saveToken(tok, exp); err != nil {
			fail(err)
		}
		fmt.Printf("token saved to %s (expires %s)\n", tokenPath(), exp.UTC().Format(time.RFC3339))

	case "status":
		cc, c, err := dial(opts)
		if err != nil {
			fail(err)
		}
		defer cc.Close()
		st, err := c.Invoke(ctx, grpcserver.MethodCheckAccountStatus, nil)
		if err != nil {
			fail(err)
		}
		ok, err := c.Invoke(ctx, grpcserver.MethodIsAvailable, nil)
		if err != nil {
			fail(err)
		}
		printJSON(os.Stdout, map[string]any{"status": st.GetStringValue(), "available": ok.GetBoolValue()})

	case "call":
		rest := flag.Args()[1:]
		if len(rest) < 1 {
			usage()
		}
		callCmd(ctx, opts, rest[0], rest[1:])

	default:
		if !isBridgeMethod(cmd) {
			usage()
		}
		callCmd(ctx, opts, cmd, flag.Args()[1:])
	}
}

// callCmd invokes one bridge method and prints the JSON result.
func callCmd(ctx context.Context, opts dialOpts, method string, rest []string) {
	fs := flag.NewFlagSet(method, flag.ExitOnError)
	argsPath := fs.String("args", "", "JSON arguments file or - for stdin")
	_ = fs.Parse(rest)

	var args any
	if *argsPath != "" {
		raw, err := readAll(*argsPath)
		if err != nil {
			fail(err)
		}
		if args, err = parseArgs(raw); err != nil {
			fail(err)
		}
	}
	cc, c, err := dial(opts)
	if err != nil {
		fail(err)
	}
	defer cc.Close()
	res, err := c.Invoke(ctx, method, args)
	if err != nil {
		fail(err)
	}
	printValue(os.Stdout, res)
}

func isBridgeMethod(name string) bool { return slices.Contains(bridgeMethods, name) }

// ---- helpers ----

func mintToken(key, sub string, ttl time.Duration) (string, time.Time, error) {
	tokens, err := service.NewTokens([]byte(key))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokens.Issue(sub, ttl)
}

// describe renders an RPC error with its bridge error kind.
func describe(err error) string {
	if s, ok := status.FromError(err); ok {
		kind := grpcserver.KindFromStatus(err)
		if kind == "" {
			return fmt.Sprintf("rpc error: code=%s msg=%s", s.Code(), s.Message())
		}
		return fmt.Sprintf("rpc error: code=%s kind=%s msg=%s", s.Code(), grpcserver.Reason(kind), s.Message())
	}
	return err.Error()
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, describe(err))
	os.Exit(1)
}
