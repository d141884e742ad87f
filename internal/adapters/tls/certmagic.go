// Package tls terminates HTTPS for the catalog API with certificates
// obtained through ACME. Challenges are solved over DNS-01 against Azure
// DNS, so certificates can be issued for deployments the ACME servers
// cannot reach directly.
package tls

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/caddyserver/certmagic"
	"github.com/libdns/azure"
)

// Config controls certificate acquisition for the public endpoint.
type Config struct {
	Enabled  bool
	Domains  []string // hostnames to obtain certificates for
	Email    string   // ACME account contact
	CacheDir string   // certificate cache location, certmagic default when empty
	Staging  bool     // solve against the Let's Encrypt staging CA
	DNS      DNSConfig
}

// DNSConfig identifies the Azure DNS zone used for DNS-01 challenges.
type DNSConfig struct {
	SubscriptionID    string
	ResourceGroupName string
	ClientID          string // user-assigned managed identity, system-assigned when empty
}

func (c Config) validate() error {
	if len(c.Domains) == 0 {
		return errors.New("tls enabled without domains")
	}
	if c.Email == "" {
		return errors.New("tls enabled without an ACME contact email")
	}
	return nil
}

// Server serves the catalog API over HTTPS when enabled, plain HTTP
// otherwise, behind a single ListenAndServe call.
type Server struct {
	cfg       Config
	handler   http.Handler
	logger    *slog.Logger
	tlsConfig *tls.Config
}

// NewServer prepares certificate management for cfg. With TLS disabled
// the returned server serves plain HTTP.
func NewServer(cfg Config, handler http.Handler, logger *slog.Logger) (*Server, error) {
	srv := &Server{cfg: cfg, handler: handler, logger: logger}
	if !cfg.Enabled {
		return srv, nil
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	tlsConfig, err := acmeTLSConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("configuring ACME: %w", err)
	}
	srv.tlsConfig = tlsConfig
	return srv, nil
}

// acmeTLSConfig points certmagic at the Azure DNS solver and returns a
// tls.Config that obtains certificates on demand.
func acmeTLSConfig(cfg Config) (*tls.Config, error) {
	certmagic.DefaultACME.Agreed = true
	certmagic.DefaultACME.Email = cfg.Email
	if cfg.Staging {
		certmagic.DefaultACME.CA = certmagic.LetsEncryptStagingCA
	}
	if cfg.CacheDir != "" {
		certmagic.Default.Storage = &certmagic.FileStorage{Path: cfg.CacheDir}
	}

	certmagic.DefaultACME.DNS01Solver = &certmagic.DNS01Solver{
		DNSManager: certmagic.DNSManager{
			DNSProvider: &azure.Provider{
				SubscriptionId:    cfg.DNS.SubscriptionID,
				ResourceGroupName: cfg.DNS.ResourceGroupName,
				ClientId:          cfg.DNS.ClientID,
			},
		},
	}

	return certmagic.TLS(cfg.Domains)
}

// ListenAndServe blocks serving the API on addr.
func (s *Server) ListenAndServe(addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if !s.cfg.Enabled {
		s.logger.Info("serving plain HTTP", "address", addr)
		return server.ListenAndServe()
	}

	s.logger.Info("serving HTTPS", "address", addr, "domains", s.cfg.Domains)
	server.TLSConfig = s.tlsConfig
	return server.ListenAndServeTLS("", "")
}

// Shutdown is a no-op; certmagic cleans up after itself.
func (s *Server) Shutdown(context.Context) error { return nil }

// TLSConfig exposes the prepared tls.Config, nil when TLS is disabled.
func (s *Server) TLSConfig() *tls.Config { return s.tlsConfig }

// ManageCertificates obtains certificates for the configured domains
// ahead of the first request.
func (s *Server) ManageCertificates(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}

	s.logger.Info("obtaining certificates", "domains", s.cfg.Domains)
	if err := certmagic.ManageSync(ctx, s.cfg.Domains); err != nil {
		return fmt.Errorf("managing certificates: %w", err)
	}
	return nil
}
