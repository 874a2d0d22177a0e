package config

import (
	"strings"
	"testing"
	"time"
)

func TestParse_FullConfig(t *testing.T) {
	input := `
# global settings
chroot "/var/www"
user "www"
group "www"
prefork 3
access log on
access log backend sqlite
access log path "/logs/access.db"
prometheus "127.0.0.1:9100"
timeout header 5s
timeout idle 90s

server "example.com" {
	listen on * port 80
	alias "www.example.com"
	root "/htdocs/example.com"
	directory index "start.html"
	location "/pub/*" {
		directory auto index
	}
	location "*" {
		block return 301 "https://$HOST$REQUEST_URI"
	}
}

server "secure.example.com" {
	listen on 10.0.0.1 port 443 tls
	root "/htdocs/secure"
	tls certificate "/etc/ssl/secure.pem" key "/etc/ssl/private/secure.key"
}
`

	cfg, err := Parse(input)
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}

	if cfg.Chroot != "/var/www" {
		t.Errorf("expected chroot %q, got %q", "/var/www", cfg.Chroot)
	}
	if cfg.User != "www" || cfg.Group != "www" {
		t.Errorf("expected user/group www, got %q/%q", cfg.User, cfg.Group)
	}
	if cfg.Prefork != 3 {
		t.Errorf("expected prefork 3, got %d", cfg.Prefork)
	}
	if !cfg.AccessLog.Enabled {
		t.Error("expected access log enabled")
	}
	if cfg.AccessLog.Backend != "sqlite" {
		t.Errorf("expected sqlite backend, got %q", cfg.AccessLog.Backend)
	}
	if cfg.AccessLog.Path != "/logs/access.db" {
		t.Errorf("unexpected access log path %q", cfg.AccessLog.Path)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.ListenAddress != "127.0.0.1:9100" {
		t.Errorf("unexpected metrics config: %+v", cfg.Metrics)
	}
	if cfg.Timeouts.ReadHeader != 5*time.Second {
		t.Errorf("expected header timeout 5s, got %v", cfg.Timeouts.ReadHeader)
	}
	if cfg.Timeouts.Idle != 90*time.Second {
		t.Errorf("expected idle timeout 90s, got %v", cfg.Timeouts.Idle)
	}

	if len(cfg.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(cfg.Servers))
	}

	first := cfg.Servers[0]
	if first.Name != "example.com" {
		t.Errorf("expected server name example.com, got %q", first.Name)
	}
	if len(first.Aliases) != 1 || first.Aliases[0] != "www.example.com" {
		t.Errorf("unexpected aliases %v", first.Aliases)
	}
	if len(first.Listens) != 1 {
		t.Fatalf("expected 1 listen, got %d", len(first.Listens))
	}
	if first.Listens[0].Address != "*" || first.Listens[0].Port != 80 || first.Listens[0].TLS {
		t.Errorf("unexpected listen %+v", first.Listens[0])
	}
	if first.DirIndex != "start.html" {
		t.Errorf("expected directory index start.html, got %q", first.DirIndex)
	}
	if len(first.Locations) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(first.Locations))
	}
	pub := first.Locations[0]
	if pub.Pattern != "/pub/*" {
		t.Errorf("unexpected pattern %q", pub.Pattern)
	}
	if pub.AutoIndex == nil || !*pub.AutoIndex {
		t.Error("expected auto index enabled for /pub/*")
	}
	catchAll := first.Locations[1]
	if catchAll.Redirect == nil {
		t.Fatal("expected redirect on catch-all location")
	}
	if catchAll.Redirect.Status != 301 {
		t.Errorf("expected status 301, got %d", catchAll.Redirect.Status)
	}
	if catchAll.Redirect.Target != "https://$HOST$REQUEST_URI" {
		t.Errorf("unexpected redirect target %q", catchAll.Redirect.Target)
	}

	second := cfg.Servers[1]
	if !second.Listens[0].TLS {
		t.Error("expected tls binding on second server")
	}
	if second.Listens[0].Address != "10.0.0.1" || second.Listens[0].Port != 443 {
		t.Errorf("unexpected listen %+v", second.Listens[0])
	}
	if second.TLS == nil {
		t.Fatal("expected tls bundle")
	}
	if second.TLS.CertFile != "/etc/ssl/secure.pem" {
		t.Errorf("unexpected cert file %q", second.TLS.CertFile)
	}
	if second.TLS.KeyFile != "/etc/ssl/private/secure.key" {
		t.Errorf("unexpected key file %q", second.TLS.KeyFile)
	}
}

func TestParse_SemicolonSeparated(t *testing.T) {
	// The single-line form used by test configurations.
	input := `server "localhost" { listen on * port 8080; root "/htdocs"; location * { directory auto index; } }`

	cfg, err := Parse(input)
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	if len(cfg.Servers) != 1 {
		t.Fatalf("expected 1 server, got %d", len(cfg.Servers))
	}
	srv := cfg.Servers[0]
	if srv.Name != "localhost" {
		t.Errorf("expected server localhost, got %q", srv.Name)
	}
	if srv.Listens[0].Port != 8080 {
		t.Errorf("expected port 8080, got %d", srv.Listens[0].Port)
	}
	if srv.Root != "/htdocs" {
		t.Errorf("expected root /htdocs, got %q", srv.Root)
	}
	if len(srv.Locations) != 1 || srv.Locations[0].Pattern != "*" {
		t.Fatalf("unexpected locations %+v", srv.Locations)
	}
	if srv.Locations[0].AutoIndex == nil || !*srv.Locations[0].AutoIndex {
		t.Error("expected auto index enabled")
	}
}

func TestParse_DirectoryNoIndex(t *testing.T) {
	input := `
server "example.com" {
	listen on * port 80
	root "/htdocs"
	directory no index
	location "/private/*" {
		directory no index
	}
}
`
	cfg, err := Parse(input)
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	srv := cfg.Servers[0]
	if srv.AutoIndex {
		t.Error("expected server auto index disabled")
	}
	loc := srv.Locations[0]
	if loc.AutoIndex == nil || *loc.AutoIndex {
		t.Error("expected location auto index explicitly disabled")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "unknown directive",
			input:   "cheroot \"/var/www\"\n",
			wantErr: "unknown directive",
		},
		{
			name:    "unterminated string",
			input:   "chroot \"/var/www\n",
			wantErr: "unterminated string",
		},
		{
			name:    "unclosed server block",
			input:   "server \"a\" {\n\tlisten on * port 80\n",
			wantErr: "unclosed server block",
		},
		{
			name:    "missing port keyword",
			input:   "server \"a\" {\n\tlisten on * 80\n}\n",
			wantErr: "expected \"port\"",
		},
		{
			name:    "bad duration",
			input:   "timeout read banana\n",
			wantErr: "invalid duration",
		},
		{
			name:    "unknown server directive",
			input:   "server \"a\" {\n\tproxy pass \"b\"\n}\n",
			wantErr: "unknown server directive",
		},
		{
			name:    "block without return",
			input:   "server \"a\" {\n\tlocation \"*\" {\n\t\tblock drop\n\t}\n}\n",
			wantErr: "expected \"return\"",
		},
		{
			name:    "garbage after listen",
			input:   "server \"a\" {\n\tlisten on * port 80 quic\n}\n",
			wantErr: "unexpected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Fatal("expected parse error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestParse_ErrorReportsLine(t *testing.T) {
	input := "chroot \"/var/www\"\nuser \"www\"\nbogus directive\n"
	_, err := Parse(input)
	if err == nil {
		t.Fatal("expected parse error, got nil")
	}
	perr, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if perr.Line != 3 {
		t.Errorf("expected error on line 3, got line %d", perr.Line)
	}
}

func TestParse_CommentsIgnored(t *testing.T) {
	input := `
# leading comment
chroot "/var/www" # trailing comment
server "a" {
	# inside block
	listen on * port 8080
	root "/htdocs"
}
`
	cfg, err := Parse(input)
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	if cfg.Chroot != "/var/www" {
		t.Errorf("expected chroot /var/www, got %q", cfg.Chroot)
	}
	if len(cfg.Servers) != 1 {
		t.Fatalf("expected 1 server, got %d", len(cfg.Servers))
	}
}
