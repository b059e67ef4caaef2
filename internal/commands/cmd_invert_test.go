package commands

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/soypat/invertify"
	"github.com/soypat/invertify/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

func testRoot(t *testing.T, out *bytes.Buffer) *cli.Command {
	t.Helper()
	cfg := config.DefaultConfig()
	flags := &Flags{Config: &cfg, Logger: zerolog.New(zerolog.NewTestWriter(t))}
	root := &cli.Command{Name: "invertify", Writer: out}
	root = NewInvertCmd(flags).Register(root)
	root = NewConfigCmd(flags).Register(root)
	return root
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{10, 20, 30, 255})
	img.SetNRGBA(1, 0, color.NRGBA{200, 100, 50, 128})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestInvertCmd(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "my.photo.png")
	writePNG(t, src)
	outDir := filepath.Join(dir, "out")

	var out bytes.Buffer
	err := testRoot(t, &out).Run(context.Background(), []string{"invertify", "invert", "--out", outDir, src})
	require.NoError(t, err)

	dst := filepath.Join(outDir, "my.photo_inverted.png")
	assert.Equal(t, dst, strings.TrimSpace(out.String()))

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{245, 235, 225, 255}, color.NRGBAModel.Convert(img.At(0, 0)))
	assert.Equal(t, color.NRGBA{55, 155, 205, 128}, color.NRGBAModel.Convert(img.At(1, 0)))
}

func TestInvertCmd_DefaultsToSourceDir(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	writePNG(t, src)

	var out bytes.Buffer
	require.NoError(t, testRoot(t, &out).Run(context.Background(), []string{"invertify", "invert", src}))
	assert.FileExists(t, filepath.Join(dir, "a_inverted.png"))
}

func TestInvertCmd_Rejections(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0o644))
	broken := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(broken, []byte("not a png"), 0o644))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no args", args: []string{"invertify", "invert"}, want: "exactly one FILE"},
		{name: "text file", args: []string{"invertify", "invert", txt}, want: invertify.MsgUnsupportedType},
		{name: "broken image", args: []string{"invertify", "invert", broken}, want: invertify.MsgDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := testRoot(t, &out).Run(context.Background(), tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfigCmd(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, testRoot(t, &out).Run(context.Background(), []string{"invertify", "config"}))

	var got config.Config
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, config.DefaultConfig(), got)
}
