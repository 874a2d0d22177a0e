// Package config defines the bastiond configuration model and loads it from
// disk.
//
// Two file forms are supported. Hand-written configurations use the native
// directive grammar:
//
//	chroot "/var/www"
//	user "www"
//	access log on
//
//	server "example.com" {
//		listen on * port 80
//		alias "www.example.com"
//		root "/htdocs/example.com"
//		location "/pub/*" {
//			directory auto index
//		}
//	}
//
//	server "secure.example.com" {
//		listen on 10.0.0.1 port 443 tls
//		root "/htdocs/secure"
//		tls certificate "/etc/ssl/secure.pem" key "/etc/ssl/private/secure.key"
//	}
//
// Machine-generated deployments may instead supply an equivalent YAML
// document (.yaml/.yml extension).
//
// Loading applies defaults, then validates: syntax problems surface as
// *ParseError, semantic problems as ValidationError with one FieldError per
// finding. Validation also checks the filesystem preconditions the runbook
// requires before process start (chroot root, document roots, certificate
// material), and rejects duplicate listen bindings across servers before any
// socket is opened.
//
// A loaded Config is immutable for the lifetime of the process;
// reconfiguration requires a restart.
package config
