package assembly

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Fallback intro and outro: one second of silence each.
//
//go:embed defaults/*.mp3
var defaultAssets embed.FS

// DefaultAssetsDir is the assets directory next to the running binary when it
// holds both clips, otherwise a cache directory holding the built-in clips.
func DefaultAssetsDir() string {
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Join(filepath.Dir(exe), "assets")
		if hasAssets(dir) {
			return dir
		}
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "readcast", "assets")
	if err := WriteDefaultAssets(dir); err != nil {
		return "assets"
	}
	return dir
}

func hasAssets(dir string) bool {
	for _, name := range []string{IntroFile, OutroFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || info.Size() == 0 {
			return false
		}
	}
	return true
}

// WriteDefaultAssets writes the built-in intro and outro into dir. Files that
// already match are left alone.
func WriteDefaultAssets(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create assets directory: %w", err)
	}
	for _, name := range []string{IntroFile, OutroFile} {
		data, err := defaultAssets.ReadFile("defaults/" + name)
		if err != nil {
			return fmt.Errorf("read built-in %s: %w", name, err)
		}
		dst := filepath.Join(dir, name)
		if info, err := os.Stat(dst); err == nil && info.Size() == int64(len(data)) {
			continue
		}
		tmp, err := os.CreateTemp(dir, name+".*")
		if err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		_, werr := tmp.Write(data)
		if err := errors.Join(werr, tmp.Close()); err != nil {
			os.Remove(tmp.Name())
			return fmt.Errorf("write %s: %w", name, err)
		}
		if err := os.Rename(tmp.Name(), dst); err != nil {
			os.Remove(tmp.Name())
			return fmt.Errorf("install %s: %w", name, err)
		}
	}
	return nil
}
