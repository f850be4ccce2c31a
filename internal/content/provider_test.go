package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	logx "congratbot/pkg/logx"
)

func TestGenerateFetchesImageAndComposesText(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("name"); got != "Аня" {
			t.Errorf("name query = %q, want Аня", got)
		}
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	p, err := NewHTTP(Config{BaseURL: srv.URL}, logx.Nop())
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	card, err := p.Generate(context.Background(), "Аня")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(card.Image) != "png-bytes" {
		t.Fatalf("Image = %q", card.Image)
	}
	if !strings.Contains(card.Text, "Аня") {
		t.Fatalf("Text %q does not mention the name", card.Text)
	}
}

func TestGenerateNonOKStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p, err := NewHTTP(Config{BaseURL: srv.URL}, logx.Nop())
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	if _, err := p.Generate(context.Background(), "Аня"); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestGenerateEmptyBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	p, err := NewHTTP(Config{BaseURL: srv.URL}, logx.Nop())
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	if _, err := p.Generate(context.Background(), "Аня"); err == nil {
		t.Fatal("expected error on empty image body")
	}
}

func TestNewHTTPRequiresBaseURL(t *testing.T) {
	t.Parallel()
	if _, err := NewHTTP(Config{}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty base_url")
	}
}
