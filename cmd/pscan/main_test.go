package main

import (
	"os"
	"path/filepath"
	"testing"

	"pscan/internal/catalog"
	"pscan/internal/ptrcore"

	"github.com/stretchr/testify/require"
)

func TestParseTargetListAcceptsHexAndDecimal(t *testing.T) {
	out, err := parseTargetList("0x100, 260,  ")
	require.NoError(t, err)
	require.Equal(t, []ptrcore.Address{0x100, 260}, out)
}

func TestParseTargetListEmptyStringYieldsNil(t *testing.T) {
	out, err := parseTargetList("  ")
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestLoadBatchDirOrdersFilesByName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_second.csv"), []byte("0x200,0x300\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_first.csv"), []byte("0x100,0x200\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("ignored"), 0o644))

	cat, err := catalog.NewBuiltin()
	require.NoError(t, err)
	sys, _ := cat.Lookup("generic32")

	batches, err := loadBatchDir(dir, sys)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	require.Equal(t, []ptrcore.Address{0x100}, batches[0].Addresses)
	require.Equal(t, []ptrcore.Address{0x200}, batches[1].Addresses)
}
