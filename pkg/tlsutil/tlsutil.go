// Package tlsutil builds TLS configurations for the mmif server and for
// downloading documents over https.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/c360/mmif/errors"
)

// ServerConfig describes server-side TLS. It is disabled while CertFile
// and KeyFile are both empty.
type ServerConfig struct {
	CertFile   string
	KeyFile    string
	MinVersion string // "1.2" or "1.3"

	// Client certificates are verified against ClientCAFiles when any is
	// given. AllowedClientCNs further restricts the leaf common name.
	ClientCAFiles     []string
	RequireClientCert bool
	AllowedClientCNs  []string
}

// Enabled reports whether TLS is configured.
func (c ServerConfig) Enabled() bool {
	return c.CertFile != "" || c.KeyFile != ""
}

// ClientConfig describes client-side TLS. The system roots are always
// trusted; CAFiles are added to them.
type ClientConfig struct {
	CAFiles            []string
	InsecureSkipVerify bool
	MinVersion         string
}

// LoadServerConfig returns the server tls.Config, or nil when cfg is not
// enabled.
func LoadServerConfig(cfg ServerConfig) (*tls.Config, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: certificate and key must be given together", errors.ErrInvalidConfig),
			"tlsutil", "LoadServerConfig", "check files")
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, errors.WrapFatal(err, "tlsutil", "LoadServerConfig", "load certificate")
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   parseTLSVersion(cfg.MinVersion),
	}

	if len(cfg.ClientCAFiles) == 0 {
		return tlsConfig, nil
	}
	clientCAs := x509.NewCertPool()
	if err := appendCAs(clientCAs, cfg.ClientCAFiles); err != nil {
		return nil, errors.WrapFatal(err, "tlsutil", "LoadServerConfig", "load client CAs")
	}
	tlsConfig.ClientCAs = clientCAs
	tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
	if cfg.RequireClientCert {
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}
	if len(cfg.AllowedClientCNs) > 0 {
		allowed := append([]string(nil), cfg.AllowedClientCNs...)
		tlsConfig.VerifyPeerCertificate = func(_ [][]byte, chains [][]*x509.Certificate) error {
			return verifyAllowedClientCN(chains, allowed)
		}
	}
	return tlsConfig, nil
}

// LoadClientConfig returns the client tls.Config.
func LoadClientConfig(cfg ClientConfig) (*tls.Config, error) {
	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}
	if err := appendCAs(rootCAs, cfg.CAFiles); err != nil {
		return nil, errors.WrapFatal(err, "tlsutil", "LoadClientConfig", "load CAs")
	}
	return &tls.Config{
		RootCAs:            rootCAs,
		MinVersion:         parseTLSVersion(cfg.MinVersion),
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // operator choice
	}, nil
}

func appendCAs(pool *x509.CertPool, files []string) error {
	for _, f := range files {
		pemData, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read CA file %s: %w", f, err)
		}
		if !pool.AppendCertsFromPEM(pemData) {
			return fmt.Errorf("%w: no PEM certificates in %s", errors.ErrInvalidConfig, f)
		}
	}
	return nil
}

// verifyAllowedClientCN runs after chain verification, so there is no
// client certificate to check when chains is empty.
func verifyAllowedClientCN(chains [][]*x509.Certificate, allowed []string) error {
	if len(chains) == 0 || len(chains[0]) == 0 {
		return nil
	}
	cn := chains[0][0].Subject.CommonName
	for _, a := range allowed {
		if cn == a {
			return nil
		}
	}
	return fmt.Errorf("client certificate CN %q not in allowed list", cn)
}

// parseTLSVersion defaults to TLS 1.2.
func parseTLSVersion(version string) uint16 {
	if version == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}
