package store

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSFiles holds certificate file paths for building a client tls.Config.
// It is a convenience for configuration surfaces that carry paths instead of
// parsed certificates.
type TLSFiles struct {
	CertFile string
	KeyFile  string
	CAFile   string
}

// ClientConfig loads the certificates and returns a client tls.Config.
func (f *TLSFiles) ClientConfig() (*tls.Config, error) {
	if f == nil {
		return nil, nil
	}
	if f.CertFile == "" {
		return nil, fmt.Errorf("TLS cert file is required")
	}
	if f.KeyFile == "" {
		return nil, fmt.Errorf("TLS key file is required")
	}
	if f.CAFile == "" {
		return nil, fmt.Errorf("TLS CA file is required")
	}

	cert, err := tls.LoadX509KeyPair(f.CertFile, f.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	caData, err := os.ReadFile(f.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caData) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
