package main

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")
	var out bytes.Buffer

	require.NoError(t, run([]string{"-dir", dir, "-hosts", "hub.local, 10.0.0.5,"}, &out))
	assert.Contains(t, out.String(), dir)

	raw, err := os.ReadFile(filepath.Join(dir, "server.crt"))
	require.NoError(t, err)
	block, _ := pem.Decode(raw)
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)

	assert.Equal(t, []string{"hub.local"}, cert.DNSNames)
	require.Len(t, cert.IPAddresses, 1)
	assert.Equal(t, "10.0.0.5", cert.IPAddresses[0].String())
}

func TestRun_NoHosts(t *testing.T) {
	err := run([]string{"-dir", t.TempDir(), "-hosts", " , "}, &bytes.Buffer{})
	assert.Error(t, err)
}
