/*
Package certs provisions the self-signed wildcard certificate the reverse
proxy uses for the *.lan services: an RSA key, a self-signed
x509.Certificate with explicit SANs, PEM-encoded to disk with a
non-world-readable key.

There is exactly one certificate to manage and no storage backend:
presence of both PEM files on disk is the only state that matters.
*/
package certs

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/localai-packaged/orchestrator/pkg/log"
	"github.com/localai-packaged/orchestrator/pkg/orcherr"
)

const (
	// CertFileName is the self-signed certificate's file name within the cert directory.
	CertFileName = "local-cert.pem"
	// KeyFileName is the private key's file name within the cert directory.
	KeyFileName = "local-key.pem"

	// keySize is the RSA modulus size for the generated key.
	keySize = 2048
	// validity is how long the generated certificate remains valid.
	validity = 365 * 24 * time.Hour
	// commonName is the certificate's Subject CN and the wildcard SAN.
	commonName = "*.lan"
)

// Paths returns the certificate and key file paths within certDir.
func Paths(certDir string) (certPath, keyPath string) {
	return filepath.Join(certDir, CertFileName), filepath.Join(certDir, KeyFileName)
}

// Exists reports whether both the certificate and key are present in certDir.
func Exists(certDir string) bool {
	certPath, keyPath := Paths(certDir)
	_, certErr := os.Stat(certPath)
	_, keyErr := os.Stat(keyPath)
	return certErr == nil && keyErr == nil
}

// EnsureCertificates makes sure certDir contains a valid certificate/key
// pair, generating a new self-signed wildcard certificate if either file is
// missing. It never overwrites existing artifacts: rotation is an operator
// decision, effected by deleting the files and re-running.
func EnsureCertificates(certDir string) error {
	logger := log.WithComponent("certs")

	if Exists(certDir) {
		logger.Debug().Str("dir", certDir).Msg("certificate pair already present, skipping generation")
		return nil
	}

	logger.Info().Str("dir", certDir).Msg("generating self-signed wildcard certificate")

	if err := os.MkdirAll(certDir, 0o755); err != nil {
		return &orcherr.CertificateError{Err: fmt.Errorf("create cert dir %s: %w", certDir, err)}
	}

	certPEM, keyPEM, err := generate()
	if err != nil {
		return &orcherr.CertificateError{Err: err}
	}

	certPath, keyPath := Paths(certDir)
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return &orcherr.CertificateError{Err: fmt.Errorf("write %s: %w", certPath, err)}
	}
	// The private key must not be world-readable.
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return &orcherr.CertificateError{Err: fmt.Errorf("write %s: %w", keyPath, err)}
	}

	logger.Info().Str("cert", certPath).Str("key", keyPath).Msg("certificate pair written")
	return nil
}

// generate creates a fresh RSA key and self-signed X.509 certificate with
// Subject CN "*.lan" and SANs covering *.lan and localhost.
func generate() (certPEM, keyPEM []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, keySize)
	if err != nil {
		return nil, nil, fmt.Errorf("generate RSA key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("generate serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: commonName,
		},
		DNSNames:              []string{commonName, "localhost"},
		NotBefore:             now,
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create self-signed certificate: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return certPEM, keyPEM, nil
}
