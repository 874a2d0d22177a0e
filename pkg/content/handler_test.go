package content

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bastion-web/bastion/pkg/config"
	"github.com/bastion-web/bastion/pkg/router"
)

// docRoot builds a document root with a known layout:
//
//	index.html
//	about.txt
//	pub/
//	  notes.md
//	empty/
func docRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"index.html":   "<h1>Test Page</h1>",
		"about.txt":    "about us",
		"pub/notes.md": "# notes",
	}
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	return root
}

func get(t *testing.T, h *Handler, route router.Route, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Serve(rec, httptest.NewRequest(http.MethodGet, target, nil), route)
	return rec
}

func TestServeIndexFile(t *testing.T) {
	route := router.Route{
		Server:    &config.Server{Name: "localhost"},
		Root:      docRoot(t),
		DirIndex:  "index.html",
		AutoIndex: true,
	}

	rec := get(t, NewHandler(nil), route, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "<h1>Test Page</h1>" {
		t.Errorf("GET / body = %q, want %q", got, "<h1>Test Page</h1>")
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
}

func TestServePlainFile(t *testing.T) {
	route := router.Route{Server: &config.Server{Name: "localhost"}, Root: docRoot(t)}

	rec := get(t, NewHandler(nil), route, "/about.txt")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "about us" {
		t.Errorf("body = %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
}

func TestMissingFile(t *testing.T) {
	route := router.Route{Server: &config.Server{Name: "localhost"}, Root: docRoot(t)}

	rec := get(t, NewHandler(nil), route, "/nope.html")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestTraversalRejected(t *testing.T) {
	root := docRoot(t)
	// A secret outside the root must stay unreachable.
	secret := filepath.Join(filepath.Dir(root), "secret.txt")
	if err := os.WriteFile(secret, []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	route := router.Route{Server: &config.Server{Name: "localhost"}, Root: root}
	h := NewHandler(nil)

	for _, target := range []string{
		"/../secret.txt",
		"/pub/../../secret.txt",
		"/..",
	} {
		rec := httptest.NewRecorder()
		// Build the request by hand: NewRequest rejects some of these paths.
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.URL.Path = target
		h.Serve(rec, req, route)
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", target, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "secret") {
			t.Errorf("GET %s leaked file contents", target)
		}
	}
}

func TestDirectoryRedirectAddsSlash(t *testing.T) {
	route := router.Route{Server: &config.Server{Name: "localhost"}, Root: docRoot(t)}

	rec := get(t, NewHandler(nil), route, "/pub")
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/pub/" {
		t.Errorf("Location = %q, want /pub/", loc)
	}
}

func TestAutoIndex(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		route := router.Route{
			Server:    &config.Server{Name: "localhost"},
			Root:      docRoot(t),
			AutoIndex: true,
		}
		rec := get(t, NewHandler(nil), route, "/pub/")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		body := rec.Body.String()
		if !strings.Contains(body, "Index of /pub") {
			t.Errorf("listing missing title: %q", body)
		}
		if !strings.Contains(body, "notes.md") {
			t.Errorf("listing missing entry: %q", body)
		}
		if !strings.Contains(body, `href="../"`) {
			t.Errorf("listing missing parent link: %q", body)
		}
	})

	t.Run("disabled hides the directory", func(t *testing.T) {
		route := router.Route{Server: &config.Server{Name: "localhost"}, Root: docRoot(t)}
		rec := get(t, NewHandler(nil), route, "/pub/")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("index file wins over listing", func(t *testing.T) {
		route := router.Route{
			Server:    &config.Server{Name: "localhost"},
			Root:      docRoot(t),
			DirIndex:  "index.html",
			AutoIndex: true,
		}
		rec := get(t, NewHandler(nil), route, "/")
		if got := rec.Body.String(); got != "<h1>Test Page</h1>" {
			t.Errorf("body = %q, want index file contents", got)
		}
	})
}

func TestBlockReturnRedirect(t *testing.T) {
	route := router.Route{
		Server: &config.Server{Name: "example.com"},
		Redirect: &config.Redirect{
			Status: http.StatusMovedPermanently,
			Target: "https://$HOST$REQUEST_URI",
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/old/page?x=1", nil)
	req.Host = "Example.COM:8080"
	NewHandler(nil).Serve(rec, req, route)

	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://example.com/old/page?x=1" {
		t.Errorf("Location = %q", loc)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	route := router.Route{Server: &config.Server{Name: "localhost"}, Root: docRoot(t)}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/about.txt", strings.NewReader("x"))
	NewHandler(nil).Serve(rec, req, route)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); !strings.Contains(allow, "GET") {
		t.Errorf("Allow = %q", allow)
	}
}

func TestHeadRequest(t *testing.T) {
	route := router.Route{Server: &config.Server{Name: "localhost"}, Root: docRoot(t)}

	rec := httptest.NewRecorder()
	NewHandler(nil).Serve(rec, httptest.NewRequest(http.MethodHead, "/about.txt", nil), route)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD body = %q, want empty", rec.Body.String())
	}
}

func TestExpandTarget(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/a/b?q=1", nil)
	req.Host = "www.example.com"

	tests := []struct {
		target string
		want   string
	}{
		{"https://$HOST$REQUEST_URI", "https://www.example.com/a/b?q=1"},
		{"https://$SERVER_NAME/", "https://canonical.example.com/"},
		{"/fixed", "/fixed"},
	}
	for _, tt := range tests {
		if got := ExpandTarget(tt.target, req, "canonical.example.com"); got != tt.want {
			t.Errorf("ExpandTarget(%q) = %q, want %q", tt.target, got, tt.want)
		}
	}
}

func TestTypeByName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"page.html", "text/html"},
		{"data.json", "application/json"},
		{"notes.md", "text/markdown"},
		{"blob.bin", "application/octet-stream"},
		{"Makefile", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := TypeByName(tt.name); !strings.HasPrefix(got, tt.want) {
			t.Errorf("TypeByName(%q) = %q, want prefix %q", tt.name, got, tt.want)
		}
	}
}
