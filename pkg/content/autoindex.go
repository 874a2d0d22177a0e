package content

import (
	"html/template"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"time"
)

// indexTemplate renders a generated directory listing. The markup follows
// the classic httpd listing: parent link first, directories before files.
var indexTemplate = template.Must(template.New("autoindex").Parse(`<!DOCTYPE html>
<html>
<head><title>Index of /{{.Path}}</title></head>
<body>
<h1>Index of /{{.Path}}</h1>
<hr>
<pre>{{if .Path}}<a href="../">../</a>
{{end}}{{range .Entries}}<a href="{{.Href}}">{{.Name}}</a>{{.Pad}} {{.ModTime}} {{.Size}}
{{end}}</pre>
<hr>
</body>
</html>
`))

type indexEntry struct {
	Name    string
	Href    template.URL
	Pad     string
	ModTime string
	Size    string
}

type indexData struct {
	Path    string
	Entries []indexEntry
}

func (h *Handler) autoIndex(w http.ResponseWriter, r *http.Request, dir, relPath string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		h.error(w, r, http.StatusForbidden)
		return
	}

	sort.Slice(entries, func(i, j int) bool {
		di, dj := entries[i].IsDir(), entries[j].IsDir()
		if di != dj {
			return di
		}
		return entries[i].Name() < entries[j].Name()
	})

	data := indexData{Path: relPath}
	for _, e := range entries {
		name := e.Name()
		href := url.PathEscape(name)
		size := "-"
		if e.IsDir() {
			name += "/"
			href += "/"
		} else if info, err := e.Info(); err == nil {
			size = formatSize(info.Size())
		}

		modTime := ""
		if info, err := e.Info(); err == nil {
			modTime = info.ModTime().Format(time.DateTime)
		}

		pad := ""
		if n := 50 - len(name); n > 0 {
			pad = spaces[:n]
		}
		data.Entries = append(data.Entries, indexEntry{
			Name:    name,
			Href:    template.URL(href),
			Pad:     pad,
			ModTime: modTime,
			Size:    size,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		h.logger.Error("failed to render directory index", "dir", dir, "error", err)
	}
}

const spaces = "                                                  "

func formatSize(n int64) string {
	switch {
	case n >= 1<<30:
		return strconv.FormatInt(n>>30, 10) + "G"
	case n >= 1<<20:
		return strconv.FormatInt(n>>20, 10) + "M"
	case n >= 1<<10:
		return strconv.FormatInt(n>>10, 10) + "K"
	default:
		return strconv.FormatInt(n, 10)
	}
}
