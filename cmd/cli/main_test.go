package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/sable-sync/internal/service"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "sable")
}

func Test_cfgDir_And_Paths(t *testing.T) {
	_ = withTmpConfig(t)
	got := cfgDir()
	base := os.Getenv("XDG_CONFIG_HOME") + "/sable"
	if got != base {
		t.Fatalf("cfgDir=%q, want %q", got, base)
	}
	if !strings.HasPrefix(tokenPath(), base) || !strings.HasSuffix(tokenPath(), "token.json") {
		t.Fatalf("tokenPath unexpected: %s", tokenPath())
	}
}

func Test_token_SaveLoad(t *testing.T) {
	_ = withTmpConfig(t)

	if _, err := loadToken(); err == nil {
		t.Fatalf("expected error when token file missing")
	}
	now := time.Now().Add(1 * time.Minute)
	if err := saveToken("tok", now); err != nil {
		t.Fatalf("saveToken: %v", err)
	}
	tok, err := loadToken()
	if err != nil || tok != "tok" {
		t.Fatalf("loadToken: tok=%q err=%v", tok, err)
	}
	if fi, err := os.Stat(tokenPath()); err != nil || fi.Mode().Perm() != 0o600 {
		t.Fatalf("token file mode: %v %v", fi, err)
	}
	if err := saveToken("tok2", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("saveToken expired: %v", err)
	}
	if _, err := loadToken(); err == nil {
		t.Fatalf("want error for expired token")
	}
}

func Test_mintToken_VerifiesOnServerSide(t *testing.T) {
	t.Parallel()

	tok, exp, err := mintToken("secret", "operator", time.Hour)
	if err != nil {
		t.Fatalf("mintToken: %v", err)
	}
	if time.Until(exp) < 59*time.Minute {
		t.Fatalf("expiry too short: %v", exp)
	}
	tokens, _ := service.NewTokens([]byte("secret"))
	if sub, err := tokens.Verify(tok); err != nil || sub != "operator" {
		t.Fatalf("verify: %q %v", sub, err)
	}
	if _, _, err := mintToken("", "operator", time.Hour); err == nil {
		t.Fatalf("want error on empty key")
	}
}

func Test_readAll_File_And_Stdin(t *testing.T) {
	// file path
	tmp := filepath.Join(t.TempDir(), "f.txt")
	_ = os.WriteFile(tmp, []byte("hello"), 0o600)
	b, err := readAll(tmp)
	if err != nil || string(b) != "hello" {
		t.Fatalf("readAll(file): %q %v", b, err)
	}

	// stdin
	r, w, _ := os.Pipe()
	old := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = old }()
	go func() { _, _ = io.WriteString(w, "from-stdin"); _ = w.Close() }()
	b, err = readAll("-")
	if err != nil || string(b) != "from-stdin" {
		t.Fatalf("readAll(stdin): %q %v", b, err)
	}
}

func Test_parseArgs(t *testing.T) {
	t.Parallel()

	v, err := parseArgs(nil)
	if err != nil || v != nil {
		t.Fatalf("empty: %v %v", v, err)
	}
	v, err = parseArgs([]byte(`[{"id":"g1","progress":0.5}]`))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	list, ok := v.([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("list shape: %#v", v)
	}
	if _, err := parseArgs([]byte(`{oops`)); err == nil {
		t.Fatalf("want error on bad json")
	}
}

func Test_printJSON_WritesPretty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printJSON(&buf, map[string]any{"a": 1})

	var m map[string]any
	if json.Unmarshal(buf.Bytes(), &m) != nil || m["a"] != float64(1) {
		t.Fatalf("printJSON produced invalid json: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\n  ")) {
		t.Fatalf("printJSON should indent")
	}
}

func Test_printValue(t *testing.T) {
	t.Parallel()

	v, _ := structpb.NewValue(map[string]any{"theme": "dark"})
	var buf bytes.Buffer
	printValue(&buf, v)
	if !strings.Contains(buf.String(), `"theme": "dark"`) {
		t.Fatalf("printValue: %s", buf.String())
	}
}

func Test_bearerCreds_Metadata(t *testing.T) {
	t.Parallel()

	b := bearerCreds{token: "T", secure: true}
	md, err := b.GetRequestMetadata(context.Background())
	if err != nil {
		t.Fatalf("GetRequestMetadata: %v", err)
	}
	if md["authorization"] != "Bearer T" {
		t.Fatalf("auth header mismatch: %v", md)
	}
	if !b.RequireTransportSecurity() {
		t.Fatalf("bearerCreds must require TLS unless plaintext")
	}
	if (bearerCreds{token: "T"}).RequireTransportSecurity() {
		t.Fatalf("plaintext dial must not require TLS")
	}
}

func Test_loadTLS_Variants(t *testing.T) {
	t.Parallel()

	// insecure
	creds, err := loadTLS("", true)
	if err != nil || creds == nil {
		t.Fatalf("insecure: %v %v", creds, err)
	}

	// system default (no caPath)
	creds, err = loadTLS("", false)
	if err != nil || creds == nil {
		t.Fatalf("default tls: %v %v", creds, err)
	}

	// bad CA file
	tmp := filepath.Join(t.TempDir(), "bad.pem")
	_ = os.WriteFile(tmp, []byte("not pem"), 0o600)
	creds, err = loadTLS(tmp, false)
	if err == nil || creds != nil {
		t.Fatalf("bad CA should error, got creds=%v err=%v", creds, err)
	}
}

func Test_dial_Plaintext(t *testing.T) {
	t.Parallel()

	cc, c, err := dial(dialOpts{addr: "localhost:1", plaintext: true, bearer: "T"})
	if err != nil || c == nil {
		t.Fatalf("dial: %v", err)
	}
	_ = cc.Close()
}

func Test_describe(t *testing.T) {
	t.Parallel()

	st, _ := status.New(codes.FailedPrecondition, "account restricted").
		WithDetails(&errdetails.ErrorInfo{Reason: "NOT_AVAILABLE", Domain: "sable.backup"})
	if got := describe(st.Err()); !strings.Contains(got, "kind=NOT_AVAILABLE") {
		t.Fatalf("describe: %s", got)
	}
	if got := describe(status.Error(codes.Unimplemented, "nope")); strings.Contains(got, "kind=") {
		t.Fatalf("unimplemented has no kind: %s", got)
	}
	if got := describe(errors.New("plain")); got != "plain" {
		t.Fatalf("plain: %s", got)
	}
}

func Test_isBridgeMethod(t *testing.T) {
	t.Parallel()

	if !isBridgeMethod("backupGoals") || isBridgeMethod("status") {
		t.Fatalf("bridge method lookup wrong")
	}
	if len(bridgeMethods) != 14 {
		t.Fatalf("want 14 bridge methods, got %d", len(bridgeMethods))
	}
}
