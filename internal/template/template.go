package template

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

// Page names which can be rendered.
const (
	Login    = "login"
	Register = "register"
	Index    = "index"
	Buy      = "buy"
	Sell     = "sell"
	Quote    = "quote"
	Quoted   = "quoted"
	History  = "history"
	AddCash  = "add_cash"
	Apology  = "apology"
)

var pageNames = []string{Login, Register, Index, Buy, Sell, Quote, Quoted, History, AddCash, Apology}

// Renderer renders pages inside the base layout.
type Renderer struct {
	pages map[string]*template.Template
}

// FormatMoney formats a value in a currency, like "$1,234.50".
func FormatMoney(value decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)

	if cur == nil {
		cur = money.GetCurrency(money.USD)
	}

	places := int32(cur.Fraction)

	return cur.Formatter().Format(value.Round(places).Shift(places).IntPart())
}

func New(currency string) (*Renderer, error) {
	funcs := template.FuncMap{
		"usd": func(value decimal.Decimal) string {
			return FormatMoney(value, currency)
		},
		"date": func(value time.Time) string {
			return value.Local().Format("2006-01-02 15:04:05")
		},
	}

	renderer := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}

	for _, name := range pageNames {
		page, err := template.New(name).Funcs(funcs).ParseFS(
			templateFiles,
			"templates/base.tmpl",
			"templates/"+name+".tmpl",
		)

		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}

		renderer.pages[name] = page
	}

	return renderer, nil
}

// Render writes a page. Nothing is written if the template fails.
func (renderer *Renderer) Render(writer io.Writer, name string, data any) error {
	page, ok := renderer.pages[name]

	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}

	var buffer bytes.Buffer

	if err := page.ExecuteTemplate(&buffer, "base", data); err != nil {
		return err
	}

	_, err := buffer.WriteTo(writer)

	return err
}
