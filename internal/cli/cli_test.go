package cli

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/renqiukai/wzbank-go/internal/crypto"
	"github.com/renqiukai/wzbank-go/internal/crypto/cryptotest"
	"github.com/renqiukai/wzbank-go/internal/sandbox"
)

func setClientEnv(t *testing.T, pair *cryptotest.Pair, baseURL string) {
	t.Helper()
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOG_LEVEL", "none")
	t.Setenv("WZB_APP_ID", "A1")
	t.Setenv("WZB_BANK_ID", "WZB")
	t.Setenv("WZB_SM2_PRIVATE_KEY", crypto.PrivateKeyToHex(pair.ClientKey))
	t.Setenv("WZB_SM2_BANK_PUBLIC_KEY", crypto.PublicKeyToHex(&pair.BankKey.PublicKey))
	t.Setenv("WZB_SM4_KEY", strings.ToUpper(hex.EncodeToString(pair.SM4Key)))
	t.Setenv("WZB_SM4_IV", strings.ToUpper(hex.EncodeToString(pair.SM4IV)))
	if baseURL != "" {
		t.Setenv("WZB_BASE_URL", baseURL)
	}
}

// execute runs the root command with args. Flag variables are reset afterwards.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())

	t.Cleanup(func() {
		callFlags, balanceFlags, bankInfoFlags, transferFlags, signFlags = requestFlags{}, requestFlags{}, requestFlags{}, requestFlags{}, requestFlags{}
		callIdempotent, decryptRaw = false, false
		signPath, bankInfoName, bankInfoNumber = "", "", ""
	})
	return out.String(), err
}

func TestSignThenDecrypt(t *testing.T) {
	pair := cryptotest.NewPair(t)
	setClientEnv(t, pair, "")

	out, err := execute(t, "sign", "--data", `{"payAcctNo":"733000120190056868","payAcctName":"瓯江实验室"}`, "--path", "balance")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	var signed signOutput
	if err := json.Unmarshal([]byte(out), &signed); err != nil {
		t.Fatalf("sign output is not JSON: %v\n%s", err, out)
	}
	if signed.URL != "https://openapi.wzbank.cn/prdApiGW/V1/P01502/S01/queryeaccountbalance" {
		t.Errorf("url = %q", signed.URL)
	}
	if signed.Headers["x-aob-appID"] != "A1" || signed.Headers["x-aob-signature"] != signed.Signature {
		t.Errorf("headers = %v", signed.Headers)
	}
	want := `{"x-aob-appID":"A1","x-aob-bankID":"WZB","bizContent":"` + signed.BizContent + `"}`
	if signed.SigningInput != want {
		t.Errorf("signing input = %s, want %s", signed.SigningInput, want)
	}
	sig, err := hex.DecodeString(signed.Signature)
	if err != nil {
		t.Fatalf("signature is not hex: %v", err)
	}
	if !pair.Bank.Verify([]byte(signed.SigningInput), sig) {
		t.Error("signature does not verify with the client public key")
	}

	out, err = execute(t, "decrypt", signed.BizContent)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !strings.Contains(out, `"payAcctName": "瓯江实验室"`) || !strings.Contains(out, signed.MessageID) {
		t.Errorf("decrypted output = %s", out)
	}
	if strings.Index(out, "payAcctNo") > strings.Index(out, "mesgId") {
		t.Error("business fields should precede the common fields")
	}
}

func TestDecryptRejectsBadInput(t *testing.T) {
	pair := cryptotest.NewPair(t)
	setClientEnv(t, pair, "")

	for _, arg := range []string{"XYZ", "00112233"} {
		if _, err := execute(t, "decrypt", arg); err == nil {
			t.Errorf("decrypt %q: expected error", arg)
		}
	}
}

func newSandbox(t *testing.T, pair *cryptotest.Pair) *httptest.Server {
	t.Helper()
	gw, err := sandbox.NewGateway(pair.Bank)
	if err != nil {
		t.Fatalf("NewGateway() error: %v", err)
	}
	ts := httptest.NewServer(gw)
	t.Cleanup(ts.Close)
	return ts
}

func TestCommandsAgainstSandbox(t *testing.T) {
	pair := cryptotest.NewPair(t)
	ts := newSandbox(t, pair)
	setClientEnv(t, pair, ts.URL+"/prdApiGW/")

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "balance", args: []string{"balance", "733000120190056868"}, want: `"payAcctBal": "1000000.00"`},
		{name: "unknown account", args: []string{"balance", "1"}, want: sandbox.DealUnknownAccount, wantErr: true},
		{name: "bankinfo", args: []string{"bankinfo", "--number", "313333007331"}, want: "温州银行"},
		{name: "bankinfo needs a flag", args: []string{"bankinfo"}, wantErr: true},
		{name: "call by name", args: []string{"call", "balance", "--field", "payAcctNo=733000120190056868", "--idempotent"}, want: `"dealCode": "0000"`},
		{name: "call by path", args: []string{"call", "V1/P09999/S01/custom", "--data", `{"x":"y"}`}, want: `"x": "y"`},
		{name: "call missing field", args: []string{"call", "batch-transfer-result", "--field", "payAcctNo=1"}, wantErr: true},
		{name: "call bad endpoint", args: []string{"call", "nope"}, wantErr: true},
		{name: "transfer", args: []string{"transfer",
			"--pay-acct", "733000120190056868", "--pay-name", "瓯江实验室", "--amount", "1.00",
			"--rcv-acct", "733000120190000001", "--rcv-name", "测试收款户", "--inbank-no", "313333007331",
			"--order-no", "ORD-CLI-1", "--reserve2", "test"}, want: `"orderNo": "ORD-CLI-1"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if tt.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v\n%s", err, tt.wantErr, out)
			}
			if tt.want != "" && !strings.Contains(out, tt.want) && (err == nil || !strings.Contains(err.Error(), tt.want)) {
				t.Errorf("output does not contain %q:\n%s", tt.want, out)
			}
		})
	}
}

func TestEndpointsCommand(t *testing.T) {
	pair := cryptotest.NewPair(t)
	setClientEnv(t, pair, "")

	out, err := execute(t, "endpoints")
	if err != nil {
		t.Fatalf("endpoints: %v", err)
	}
	for _, want := range []string{"queryeaccountbalance", "singletrans", "queryCertExpiry"} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not list %s", want)
		}
	}
}

func TestResolveKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sm4.key")
	if err := os.WriteFile(path, []byte("2ABDBED2A873B983148F922CFA238205\n"), 0600); err != nil {
		t.Fatal(err)
	}

	got, err := resolveKey("@" + path)
	if err != nil {
		t.Fatalf("resolveKey() error: %v", err)
	}
	if got != "2ABDBED2A873B983148F922CFA238205" {
		t.Errorf("got %q", got)
	}

	if got, _ := resolveKey(" inline "); got != "inline" {
		t.Errorf("inline value = %q", got)
	}
	if _, err := resolveKey("@" + filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestRequestFlagsPayload(t *testing.T) {
	f := requestFlags{data: `{"b":"1","a":2}`, fields: []string{"c=3", "b=override"}}
	p, err := f.payload()
	if err != nil {
		t.Fatalf("payload() error: %v", err)
	}
	if got := strings.Join(p.Keys(), ","); got != "b,a,c" {
		t.Errorf("keys = %s", got)
	}
	if p.GetString("b") != "override" {
		t.Errorf("b = %q", p.GetString("b"))
	}

	for _, bad := range []requestFlags{{data: "[1]"}, {fields: []string{"novalue"}}, {data: "@/does/not/exist.json"}} {
		if _, err := bad.payload(); err == nil {
			t.Errorf("expected error for %+v", bad)
		}
	}
	if _, err := (&requestFlags{headers: []string{"=x"}}).headerPairs(); err == nil {
		t.Error("expected error for an empty header name")
	}
}
