// Command minify builds the production asset tree: every template and static
// file is minified into dist/ so the server can serve it with -production.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

func main() {
	var (
		templatesDir = flag.String("templates", "templates", "Template source directory")
		staticDir    = flag.String("static", "static", "Static asset source directory")
		outDir       = flag.String("out", "dist", "Output directory")
	)
	flag.Parse()

	m := newMinifier()
	var total stats
	for _, src := range []string{*templatesDir, *staticDir} {
		s, err := minifyTree(m, src, filepath.Join(*outDir, filepath.Base(src)))
		if err != nil {
			log.Fatalf("Failed to minify %s: %v", src, err)
		}
		total.add(s)
	}

	fmt.Printf("Minified %d files, copied %d: %d bytes -> %d bytes (%.1f%% reduction)\n",
		total.minified, total.copied, total.before, total.after, total.reduction())
}

// newMinifier keeps {{ }} actions intact so templates still parse after
// minification.
func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
		TemplateDelims:   html.GoTemplateDelims,
	})
	m.AddFunc("application/javascript", js.Minify)
	return m
}

var mediaTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
}

type stats struct {
	minified, copied int
	before, after    int
}

func (s *stats) add(o stats) {
	s.minified += o.minified
	s.copied += o.copied
	s.before += o.before
	s.after += o.after
}

func (s stats) reduction() float64 {
	if s.before == 0 {
		return 0
	}
	return float64(s.before-s.after) / float64(s.before) * 100
}

// minifyTree mirrors src into dst. Files with a known media type are
// minified; everything else (images, fonts, already-minified bundles) is
// copied as is.
func minifyTree(m *minify.M, src, dst string) (stats, error) {
	var s stats
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)

		in, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		mediaType, ok := mediaTypes[filepath.Ext(path)]
		if !ok || strings.HasSuffix(path, ".min.js") {
			s.copied++
			return writeFile(out, in)
		}

		minified, err := m.Bytes(mediaType, in)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		s.minified++
		s.before += len(in)
		s.after += len(minified)
		return writeFile(out, minified)
	})
	return s, err
}

func writeFile(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
