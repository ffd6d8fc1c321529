package storage

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gncompass/serverfront/internal/auth"
)

const callback = "/core/v1/uploads/assessments/6f1c2a4e-8b0d-4f7a-9d55-3c2b1a0e9f88"

func newIssuer(production bool) (*SignedUploadIssuer, *auth.TokenManager) {
	tokens := auth.NewTokenManager("serverfront-test", "secret", time.Hour)
	return NewSignedUploadIssuer(tokens, Config{
		BaseURL:    "https://uploads.example.com/",
		Bucket:     "test-gnc-data",
		Production: production,
		TokenTTL:   10 * time.Minute,
	}), tokens
}

func tokenFromURL(t *testing.T, u string) string {
	t.Helper()
	const prefix = "https://uploads.example.com/upload/"
	if !strings.HasPrefix(u, prefix) {
		t.Fatalf("upload url = %q, want prefix %q", u, prefix)
	}
	return strings.TrimPrefix(u, prefix)
}

func TestUploadURL_ProductionUsesConfiguredBucket(t *testing.T) {
	issuer, tokens := newIssuer(true)

	u, err := issuer.UploadURL("6f1c2a4e-8b0d-4f7a-9d55-3c2b1a0e9f88", callback)
	if err != nil {
		t.Fatalf("UploadURL() error = %v", err)
	}
	claims, err := tokens.ParseUpload(tokenFromURL(t, u))
	if err != nil {
		t.Fatalf("ParseUpload() error = %v", err)
	}
	if claims.Bucket != "test-gnc-data" {
		t.Errorf("Bucket = %q, want test-gnc-data", claims.Bucket)
	}
	if claims.Callback != callback {
		t.Errorf("Callback = %q, want %q", claims.Callback, callback)
	}
}

func TestUploadURL_NonProductionUsesDefaultBucket(t *testing.T) {
	issuer, tokens := newIssuer(false)

	u, err := issuer.UploadURL("ref", callback)
	if err != nil {
		t.Fatalf("UploadURL() error = %v", err)
	}
	claims, err := tokens.ParseUpload(tokenFromURL(t, u))
	if err != nil {
		t.Fatalf("ParseUpload() error = %v", err)
	}
	if claims.Bucket != "" {
		t.Errorf("Bucket = %q, want default (empty)", claims.Bucket)
	}
}

func TestVerifyCallback(t *testing.T) {
	issuer, _ := newIssuer(false)
	ref := "6f1c2a4e-8b0d-4f7a-9d55-3c2b1a0e9f88"
	u, _ := issuer.UploadURL(ref, callback)
	token := tokenFromURL(t, u)

	if err := issuer.VerifyCallback(token, ref, callback); err != nil {
		t.Errorf("VerifyCallback() error = %v", err)
	}
	if err := issuer.VerifyCallback(token, "another-ref", callback); !errors.Is(err, ErrCallbackMismatch) {
		t.Errorf("err = %v, want ErrCallbackMismatch", err)
	}
	if err := issuer.VerifyCallback(token, ref, "/core/v1/uploads/assessments/other"); !errors.Is(err, ErrCallbackMismatch) {
		t.Errorf("err = %v, want ErrCallbackMismatch", err)
	}
	if err := issuer.VerifyCallback("garbage", ref, callback); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("err = %v, want auth.ErrInvalidToken", err)
	}
}
