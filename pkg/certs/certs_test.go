package certs

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCertificatesGeneratesValidPair(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnsureCertificates(dir))

	certPath, keyPath := Paths(dir)
	require.True(t, Exists(dir))

	certBytes, err := os.ReadFile(certPath)
	require.NoError(t, err)
	block, _ := pem.Decode(certBytes)
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)

	assert.Equal(t, "*.lan", cert.Subject.CommonName)
	assert.ElementsMatch(t, []string{"*.lan", "localhost"}, cert.DNSNames)
	assert.True(t, cert.NotAfter.Sub(cert.NotBefore) >= 365*24*time.Hour)

	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestEnsureCertificatesDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnsureCertificates(dir))

	certPath, keyPath := Paths(dir)
	before, err := os.ReadFile(certPath)
	require.NoError(t, err)
	beforeInfo, err := os.Stat(certPath)
	require.NoError(t, err)

	// Repeating the call must be a complete no-op.
	require.NoError(t, EnsureCertificates(dir))

	after, err := os.ReadFile(certPath)
	require.NoError(t, err)
	afterInfo, err := os.Stat(certPath)
	require.NoError(t, err)

	assert.Equal(t, before, after)
	assert.Equal(t, beforeInfo.ModTime(), afterInfo.ModTime())
	assert.FileExists(t, keyPath)
}

func TestEnsureCertificatesRegeneratesIfEitherFileMissing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnsureCertificates(dir))

	certPath, _ := Paths(dir)
	require.NoError(t, os.Remove(certPath))
	require.False(t, Exists(dir))

	// A missing half regenerates both: the skip condition requires both
	// files present, not just one.
	require.NoError(t, EnsureCertificates(dir))
	require.True(t, Exists(dir))
}
