package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/alecgard/portico/internal/credential"
	"github.com/alecgard/portico/internal/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestHashPassword(t *testing.T) {
	var out bytes.Buffer
	hashPasswordCmd.SetOut(&out)
	defer hashPasswordCmd.SetOut(nil)

	if err := runHashPassword(hashPasswordCmd, []string{"s3cret"}); err != nil {
		t.Fatalf("hash-password failed: %v", err)
	}
	hash := strings.TrimSpace(out.String())
	if !credential.Verify("s3cret", hash) {
		t.Errorf("printed hash %q does not verify", hash)
	}
}

func TestHashPasswordFromStdin(t *testing.T) {
	var out bytes.Buffer
	hashPasswordCmd.SetOut(&out)
	hashPasswordCmd.SetIn(strings.NewReader("from-stdin\n"))
	defer func() {
		hashPasswordCmd.SetOut(nil)
		hashPasswordCmd.SetIn(nil)
	}()

	if err := runHashPassword(hashPasswordCmd, nil); err != nil {
		t.Fatalf("hash-password failed: %v", err)
	}
	if !credential.Verify("from-stdin", strings.TrimSpace(out.String())) {
		t.Error("hash of stdin password does not verify")
	}
}

func TestHashPasswordEmpty(t *testing.T) {
	hashPasswordCmd.SetIn(strings.NewReader(""))
	defer hashPasswordCmd.SetIn(nil)

	if err := runHashPassword(hashPasswordCmd, nil); err == nil {
		t.Error("expected error for empty password")
	}
}

func TestCheckToken(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	svc, err := token.NewService(testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	tok, _, err := svc.Issue("6f1c2b8e-3d4a-4e5f-9a0b-1c2d3e4f5a6b")
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	checkTokenCmd.SetOut(&out)
	defer checkTokenCmd.SetOut(nil)

	if err := runCheckToken(checkTokenCmd, []string{tok}); err != nil {
		t.Fatalf("check-token failed: %v", err)
	}
	if !strings.Contains(out.String(), "subject: 6f1c2b8e-3d4a-4e5f-9a0b-1c2d3e4f5a6b") {
		t.Errorf("expected subject in output, got %q", out.String())
	}
	if !strings.Contains(out.String(), "expires: ") {
		t.Errorf("expected expiry in output, got %q", out.String())
	}
}

func TestCheckTokenRejectsForeignToken(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	other, _ := token.NewService("a-completely-different-secret", time.Hour)
	tok, _, _ := other.Issue("user-1")

	if err := runCheckToken(checkTokenCmd, []string{tok}); err == nil {
		t.Error("expected verification error")
	}
}

func TestCheckTokenRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if err := runCheckToken(checkTokenCmd, []string{"anything"}); err == nil {
		t.Error("expected configuration error without a signing secret")
	}
}
