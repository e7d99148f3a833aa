package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOrGenerateCreatesThenLoads(t *testing.T) {
	dir := t.TempDir()

	k1, err := LoadOrGenerate(dir)
	require.NoError(t, err)
	require.NotNil(t, k1.Private)
	require.NotNil(t, k1.Public)
	wantPub := k1.Public.Bytes()
	k1.Close()

	k2, err := LoadOrGenerate(dir)
	require.NoError(t, err)
	defer k2.Close()
	require.Equal(t, wantPub, k2.Public.Bytes())
}

func TestLoadOrGenerateDerivesConsistentPublicKey(t *testing.T) {
	dir := t.TempDir()

	k, err := LoadOrGenerate(dir)
	require.NoError(t, err)
	defer k.Close()

	require.Equal(t, k.Private.Public().Bytes(), k.Public.Bytes())
}

func TestLoadOrGenerateRejectsCorruptPEM(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writePEM(dir+"/link.private.pem", "GARBAGE TYPE", []byte("not a real key"), 0600))

	_, err := LoadOrGenerate(dir)
	require.Error(t, err)
}
