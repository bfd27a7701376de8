package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/client/app"
	"github.com/credihogar/catalog/internal/client/catalog"
	"github.com/credihogar/catalog/internal/client/storage"
	"github.com/credihogar/catalog/internal/models"
)

const helpText = `Comandos:
  list [categoría]          productos, opcionalmente de una categoría
  search <texto>            buscar en nombre y descripción
  sort <campo> [asc|desc]   ordenar por created_at, updated_at, name o price
  get <id>                  detalle de un producto
  categories                categorías disponibles
  contact <id>              enlace de WhatsApp para un producto
  sync                      volver a cargar el catálogo
  login <email>             iniciar sesión
  register <email>          crear una cuenta
  logout                    cerrar sesión
  whoami                    usuario actual
  add                       crear un producto
  edit <id>                 editar un producto
  delete <id>               eliminar un producto
  settings                  número de WhatsApp y clave del modo local
  exit                      salir`

// shell runs the interactive loop over an App.
type shell struct {
	app    *app.App
	prompt prompter
	out    io.Writer
	ctx    context.Context
	filter models.ProductFilter
}

func newShell(a *app.App, in *bufio.Scanner, out io.Writer) *shell {
	s := &shell{app: a, prompt: prompter{in: in, out: out}, out: out, ctx: context.Background()}
	_ = a.Bus.Subscribe(catalog.TopicSynced, func(snap *catalog.Snapshot) {
		fmt.Fprintf(out, "(catálogo sincronizado: %d productos)\n", len(snap.Products))
	})
	return s
}

// run reads commands until exit or end of input.
func (s *shell) run() {
	fmt.Fprintf(s.out, "Catálogo Credihogar (%s). Escribe 'help' para ver los comandos.\n", s.app.Kind)
	for {
		fmt.Fprint(s.out, "credihogar> ")
		if !s.prompt.in.Scan() {
			break
		}
		line := strings.TrimSpace(s.prompt.in.Text())
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		if !s.exec(cmd, strings.TrimSpace(arg)) {
			return
		}
	}
}

// exec runs one command and reports whether the shell should continue.
func (s *shell) exec(cmd, arg string) bool {
	var err error
	switch cmd {
	case "help":
		fmt.Fprintln(s.out, helpText)
	case "list":
		f := s.filter
		f.Category, f.Search = arg, ""
		err = s.list(f)
	case "search":
		f := s.filter
		f.Category, f.Search = "", arg
		err = s.list(f)
	case "sort":
		err = s.sort(arg)
	case "get":
		err = s.get(arg)
	case "categories":
		for _, c := range s.app.Catalog.Categories(s.ctx) {
			fmt.Fprintln(s.out, " -", c)
		}
	case "contact":
		err = s.contact(arg)
	case "sync":
		s.app.Catalog.Invalidate()
		_, err = s.app.Catalog.Sync(s.ctx)
	case "login":
		err = s.login(arg, false)
	case "register":
		err = s.login(arg, true)
	case "logout":
		err = s.app.Sessions.SignOut(s.ctx)
		if err == nil {
			fmt.Fprintln(s.out, "Sesión cerrada")
		}
	case "whoami":
		s.whoami()
	case "add":
		err = s.add()
	case "edit":
		err = s.edit(arg)
	case "delete":
		err = s.remove(arg)
	case "settings":
		err = s.settings()
	case "exit", "quit":
		fmt.Fprintln(s.out, "Hasta luego")
		return false
	default:
		fmt.Fprintln(s.out, "Comando desconocido. Escribe 'help' para ver los comandos.")
	}
	if err != nil {
		fmt.Fprintln(s.out, "Error:", err)
	}
	return true
}

func (s *shell) list(f models.ProductFilter) error {
	products, err := s.app.Catalog.List(s.ctx, f)
	if len(products) == 0 {
		if err == nil {
			fmt.Fprintln(s.out, "No hay productos")
		}
		return err
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNOMBRE\tCATEGORÍA\tPRECIO")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, catalog.FormatPrice(p.Price))
	}
	_ = tw.Flush()
	// A failed refresh still shows the last known catalog.
	return err
}

func (s *shell) sort(arg string) error {
	field, dir, _ := strings.Cut(arg, " ")
	switch field {
	case "created_at", "updated_at", "name", "price":
	default:
		return fmt.Errorf("campo de orden inválido %q", field)
	}
	s.filter.OrderBy = field
	s.filter.Ascending = strings.TrimSpace(dir) == "asc"
	fmt.Fprintf(s.out, "Orden: %s %s\n", field, map[bool]string{true: "asc", false: "desc"}[s.filter.Ascending])
	return nil
}

func (s *shell) get(id string) error {
	if id == "" {
		fmt.Fprintln(s.out, "Uso: get <id>")
		return nil
	}
	p, err := s.app.Catalog.Get(s.ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s\n  %s\n  Categoría: %s\n  Precio: %s\n", p.Name, p.Description, p.Category, catalog.FormatPrice(p.Price))
	if p.ImageURL != "" && !strings.HasPrefix(p.ImageURL, "data:") {
		fmt.Fprintf(s.out, "  Imagen: %s\n", p.ImageURL)
	}
	return nil
}

func (s *shell) contact(id string) error {
	if id == "" {
		fmt.Fprintln(s.out, "Uso: contact <id>")
		return nil
	}
	p, err := s.app.Catalog.Get(s.ctx, id)
	if err != nil {
		return err
	}
	link, err := s.app.ContactLink(p)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, link)
	return nil
}

func (s *shell) login(email string, register bool) error {
	if email == "" && s.app.Kind != app.BackendLocal {
		email = s.prompt.ask("Email: ")
	}
	password := s.prompt.ask("Contraseña: ")
	var (
		sess models.Session
		err  error
	)
	if register {
		sess, err = s.app.Sessions.SignUp(s.ctx, email, password)
	} else {
		sess, err = s.app.Sessions.SignIn(s.ctx, email, password)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Bienvenido, %s\n", sess.User.Email)
	return nil
}

func (s *shell) whoami() {
	sess := s.app.Sessions.Current()
	if sess == nil {
		fmt.Fprintln(s.out, "No autenticado")
		return
	}
	role := "usuario"
	if sess.User.IsAdmin {
		role = "administrador"
	}
	fmt.Fprintf(s.out, "%s (%s), sesión válida hasta %s\n", sess.User.Email, role, sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
}

// requireSession rejects anonymous writes before the form is shown.
func (s *shell) requireSession() error {
	if s.app.Sessions.Current() == nil {
		return apperr.Unauthenticated("No autenticado")
	}
	return nil
}

func (s *shell) add() error {
	if err := s.requireSession(); err != nil {
		return err
	}
	in, closeImg, err := s.prompt.promptProduct(nil)
	if err != nil {
		return err
	}
	defer closeImg()
	p, err := s.app.Mutations.Create(s.ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Producto creado: %s\n", p.ID)
	return nil
}

func (s *shell) edit(id string) error {
	if id == "" {
		fmt.Fprintln(s.out, "Uso: edit <id>")
		return nil
	}
	if err := s.requireSession(); err != nil {
		return err
	}
	cur, err := s.app.Catalog.Get(s.ctx, id)
	if err != nil {
		return err
	}
	in, closeImg, err := s.prompt.promptProduct(&cur)
	if err != nil {
		return err
	}
	defer closeImg()
	if _, err := s.app.Mutations.Update(s.ctx, id, in); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Producto actualizado")
	return nil
}

func (s *shell) remove(id string) error {
	if id == "" {
		fmt.Fprintln(s.out, "Uso: delete <id>")
		return nil
	}
	if err := s.requireSession(); err != nil {
		return err
	}
	if !s.prompt.confirm("¿Eliminar el producto " + id + "?") {
		return nil
	}
	if err := s.app.Mutations.Delete(s.ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Producto eliminado")
	return nil
}

func (s *shell) settings() error {
	cur, err := s.app.Settings()
	if err != nil {
		return err
	}
	next := storage.Settings{WhatsApp: s.prompt.askDefault("Número de WhatsApp", cur.WhatsApp)}
	if s.app.Kind == app.BackendLocal {
		next.AdminPass = s.prompt.ask("Nueva clave de propietario (vacío para no cambiar): ")
	}
	if err := s.app.SaveSettings(next); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Ajustes guardados")
	return nil
}
