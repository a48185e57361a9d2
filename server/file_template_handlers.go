package server

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*
var templateFiles embed.FS

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a template from the embedded filesystem. Additional names
// are parsed into the same set so the first can use their definitions.
func ParseTemplate(name string, partials ...string) (*template.Template, error) {
	return template.New(name).ParseFS(TemplateFilesFS(), append([]string{name}, partials...)...)
}
