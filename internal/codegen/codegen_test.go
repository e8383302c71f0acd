package codegen

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

type stubProvider struct {
	name  string
	calls int
	got   Request
	res   *Result
	err   error
}

func (s *stubProvider) Name() string         { return s.name }
func (s *stubProvider) DefaultModel() string { return s.name + "-default" }

func (s *stubProvider) Generate(_ context.Context, req Request) (*Result, error) {
	s.calls++
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	res := *s.res
	return &res, nil
}

func TestGatewayUsesDefaultProvider(t *testing.T) {
	primary := &stubProvider{name: "gemini", res: &Result{Raw: "```html\n<div>hi</div>\n```"}}
	other := &stubProvider{name: "openai", res: &Result{Raw: "<p>other</p>"}}
	g := NewGatewayWith("gemini", slog.New(slog.DiscardHandler), primary, other)

	res, err := g.Generate(context.Background(), Request{Prompt: "a button"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if primary.calls != 1 || other.calls != 0 {
		t.Fatalf("calls primary=%d other=%d", primary.calls, other.calls)
	}
	if res.Markup != "<div>hi</div>" {
		t.Errorf("Markup = %q", res.Markup)
	}
	if res.Provider != "gemini" || res.Model != "gemini-default" {
		t.Errorf("provider/model = %s/%s", res.Provider, res.Model)
	}
	if primary.got.MaxTokens != defaultMaxTokens {
		t.Errorf("MaxTokens = %d", primary.got.MaxTokens)
	}
}

func TestGatewayExplicitProvider(t *testing.T) {
	primary := &stubProvider{name: "gemini", res: &Result{Raw: "x"}}
	other := &stubProvider{name: "ollama", res: &Result{Raw: "<p>local</p>"}}
	g := NewGatewayWith("gemini", nil, primary, other)

	res, err := g.Generate(context.Background(), Request{Prompt: "p", Provider: "ollama", Model: "llava:13b"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if other.calls != 1 || primary.calls != 0 {
		t.Fatalf("wrong provider called")
	}
	if res.Model != "llava:13b" {
		t.Errorf("Model = %q", res.Model)
	}
	if got := g.Providers(); len(got) != 2 || got[0] != "gemini" || got[1] != "ollama" {
		t.Errorf("Providers() = %v", got)
	}
}

func TestGatewayFailureIsWrappedAndNotRetried(t *testing.T) {
	cause := errors.New("quota exceeded")
	p := &stubProvider{name: "gemini", err: cause}
	g := NewGatewayWith("gemini", slog.New(slog.DiscardHandler), p, &stubProvider{name: "openai", res: &Result{}})

	_, err := g.Generate(context.Background(), Request{Prompt: "p"})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("err = %v, want underlying cause", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("message %q lacks the cause", err.Error())
	}
	var genErr *GenerationError
	if !errors.As(err, &genErr) || genErr.Provider != "gemini" {
		t.Errorf("GenerationError = %+v", genErr)
	}
	if p.calls != 1 {
		t.Errorf("provider called %d times, want 1", p.calls)
	}
}

func TestGatewayUnknownProvider(t *testing.T) {
	g := NewGatewayWith("gemini", nil)
	if _, err := g.Generate(context.Background(), Request{Prompt: "p"}); !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
}

func TestCleanMarkup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  <div></div>\n", "<div></div>"},
		{"html fence", "Here you go:\n```html\n<div></div>\n```\nEnjoy", "<div></div>"},
		{"bare fence", "```\n<p>x</p>\n```", "<p>x</p>"},
		{"html and css", "```html\n<p>x</p>\n```\n\n```css\np { color: red; }\n```", "<p>x</p>\n\np { color: red; }"},
		{"crlf", "```html\r\n<b>y</b>\r\n```", "<b>y</b>"},
		{"truncated", "```html\n<div>hi</div>\n<p>cut", "<div>hi</div>\n<p>cut"},
		{"prose then truncated", "Sure:\n```html\n<main>", "<main>"},
		{"truncated after complete block", "```html\n<p>x</p>\n```\n```css\np { color:", "<p>x</p>\n\np { color:"},
		{"stray backticks", "use `code` here", "use `code` here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanMarkup(tt.in); got != tt.want {
				t.Errorf("CleanMarkup(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitStyles(t *testing.T) {
	in := "<div class=\"a\">x</div>\n<style>\n.a { color: red; }\n</style>\n<STYLE type=\"text/css\">.b{}</STYLE>"
	html, css := SplitStyles(in)
	if html != "<div class=\"a\">x</div>" {
		t.Errorf("html = %q", html)
	}
	if css != ".a { color: red; }\n\n.b{}" {
		t.Errorf("css = %q", css)
	}

	html, css = SplitStyles("<p>no styles</p>")
	if html != "<p>no styles</p>" || css != "" {
		t.Errorf("got %q / %q", html, css)
	}
}

func TestCalculateCost(t *testing.T) {
	if got := CalculateCost("gpt-4o", 1000, 1000); math.Abs(got-0.0125) > 1e-9 {
		t.Errorf("gpt-4o cost = %v", got)
	}
	if got := CalculateCost("gemini-2.5-flash-preview-04-17", 1000, 0); math.Abs(got-0.00015) > 1e-9 {
		t.Errorf("preview cost = %v", got)
	}
	if got := CalculateCost("llava", 1000, 1000); got != 0 {
		t.Errorf("local cost = %v", got)
	}
}

func TestOllamaProvider(t *testing.T) {
	var got ollamaChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaChatResp{
			Message:         ollamaMessage{Role: "assistant", Content: "```html\n<main></main>\n```"},
			Done:            true,
			PromptEvalCount: 12,
			EvalCount:       7,
		})
	}))
	defer srv.Close()

	g := NewGatewayWith("ollama", nil, NewOllamaProvider(srv.URL+"/", ""))
	res, err := g.Generate(context.Background(), Request{Prompt: "landing page", Image: []byte{0x89, 'P', 'N', 'G'}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Markup != "<main></main>" || res.InputTokens != 12 || res.OutputTokens != 7 {
		t.Errorf("result = %+v", res)
	}
	if got.Model != "llava" || got.Stream || len(got.Messages) != 1 {
		t.Fatalf("request = %+v", got)
	}
	if msg := got.Messages[0]; msg.Content != "landing page" || len(msg.Images) != 1 || msg.Images[0] != "iVBORw==" {
		t.Errorf("message = %+v", msg)
	}
}

func TestOllamaProviderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	g := NewGatewayWith("ollama", nil, NewOllamaProvider(srv.URL, "missing"))
	_, err := g.Generate(context.Background(), Request{Prompt: "p"})
	if !errors.Is(err, ErrGenerationFailed) || !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestOpenAIProviderSendsImageAsDataURL(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"<section></section>"}}],"usage":{"prompt_tokens":100,"completion_tokens":20,"total_tokens":120}}`)
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	g := NewGatewayWith("openai", nil, NewOpenAIProviderWithConfig(cfg, ""))

	res, err := g.Generate(context.Background(), Request{Prompt: "copy this", Image: []byte("img"), ImageMIMEType: "image/jpeg"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Markup != "<section></section>" || res.InputTokens != 100 || res.OutputTokens != 20 {
		t.Errorf("result = %+v", res)
	}

	msgs, _ := body["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages = %v", body["messages"])
	}
	parts, _ := msgs[0].(map[string]any)["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("content parts = %v", msgs[0])
	}
	img, _ := parts[1].(map[string]any)["image_url"].(map[string]any)
	if img["url"] != "data:image/jpeg;base64,aW1n" {
		t.Errorf("image url = %v", img["url"])
	}
}
