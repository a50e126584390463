package static

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// LoadDir reads every .html file below dir into pages keyed by their path
// relative to dir. index.html is also served at its directory.
func LoadDir(fs afero.Fs, dir string) (map[string]Page, error) {
	pages := map[string]Page{}
	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.EqualFold(filepath.Ext(path), ".html") {
			return nil
		}
		buf, err := afero.ReadFile(fs, path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		key := "/" + filepath.ToSlash(rel)
		pages[key] = Page{HTML: string(buf)}
		if filepath.Base(key) == "index.html" {
			pages[strings.TrimSuffix(key, "index.html")] = Page{HTML: string(buf)}
		}
		return nil
	})
	return pages, err
}
