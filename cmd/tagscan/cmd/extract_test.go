package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCommandFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lines.txt")
	body := "HT00189FT-US\nWOOL KNIT SWEATER\nM\n$49.99\n80% WOOL\nChest 21 inches\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	out, err := executeCommand(t, "extract", path, "--format", "json")
	require.NoError(t, err)

	var info struct {
		ProductCode  string            `json:"product_code"`
		Name         string            `json:"name"`
		Size         string            `json:"size"`
		Price        *float64          `json:"price"`
		Materials    map[string]int    `json:"materials"`
		Measurements map[string]string `json:"measurements"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "HT00189FT-US", info.ProductCode)
	assert.Equal(t, "WOOL KNIT SWEATER", info.Name)
	assert.Equal(t, "M", info.Size)
	require.NotNil(t, info.Price)
	assert.InDelta(t, 49.99, *info.Price, 1e-9)
	assert.Equal(t, 80, info.Materials["WOOL"])
	assert.Equal(t, "21", info.Measurements["chest"])
}

func TestExtractCommandFromStdin(t *testing.T) {
	buf := new(bytes.Buffer)
	root := GetRootCommand()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(bytes.NewBufferString("S202-4575\n"))
	root.SetArgs([]string{"extract", "--format", "text"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "S202-4575")
}

func TestExtractCommandEmptyInput(t *testing.T) {
	buf := new(bytes.Buffer)
	root := GetRootCommand()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(bytes.NewBufferString(""))
	root.SetArgs([]string{"extract", "--format", "text"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "No garment fields recognized")
}

func TestExtractCommandMissingFile(t *testing.T) {
	_, err := executeCommand(t, "extract", filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open input file")
}
