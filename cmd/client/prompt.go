package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/credihogar/catalog/internal/client/backend"
	"github.com/credihogar/catalog/internal/client/mutation"
	"github.com/credihogar/catalog/internal/models"
)

// prompter asks questions on out and reads single-line answers from in.
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// ask prints label and returns the trimmed answer. An exhausted input
// yields an empty answer.
func (p prompter) ask(label string) string {
	fmt.Fprint(p.out, label)
	if !p.in.Scan() {
		return ""
	}
	return strings.TrimSpace(p.in.Text())
}

// askDefault shows the current value and keeps it when the answer is empty.
func (p prompter) askDefault(label, current string) string {
	if current != "" {
		label = fmt.Sprintf("%s [%s]: ", label, current)
	} else {
		label += ": "
	}
	if v := p.ask(label); v != "" {
		return v
	}
	return current
}

// promptProduct fills the product form. With current set, empty answers keep
// the current values. The returned close func releases the image file.
func (p prompter) promptProduct(current *models.Product) (mutation.Input, func(), error) {
	var cur models.Product
	if current != nil {
		cur = *current
	}
	price := ""
	if current != nil {
		price = strconv.FormatFloat(cur.Price, 'f', -1, 64)
	}

	in := mutation.Input{
		Name:        p.askDefault("Nombre", cur.Name),
		Description: p.askDefault("Descripción", cur.Description),
		Category:    p.askDefault("Categoría", cur.Category),
	}
	if v := p.askDefault("Precio", price); v != "" {
		in.Price = v
	}

	path := p.ask("Imagen (ruta, vacío para no cambiar): ")
	if path == "" {
		return in, func() {}, nil
	}
	img, closeImg, err := openImage(path)
	if err != nil {
		return mutation.Input{}, nil, err
	}
	in.Image = img
	return in, closeImg, nil
}

// confirm asks a yes/no question; only "s", "si", "sí", "y" and "yes" agree.
func (p prompter) confirm(question string) bool {
	switch strings.ToLower(p.ask(question + " (s/N): ")) {
	case "s", "si", "sí", "y", "yes":
		return true
	}
	return false
}

func openImage(path string) (*backend.File, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("no se pudo abrir %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("no se pudo leer %q: %w", path, err)
	}
	return &backend.File{Name: filepath.Base(path), Size: info.Size(), Body: f}, func() { _ = f.Close() }, nil
}
