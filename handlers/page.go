package handlers

import (
	"bytes"
	"html/template"
	"log"
	"net/http"

	"github.com/shopspring/decimal"

	"venue-tickets-api/locale"
	"venue-tickets-api/pricing"
	"venue-tickets-api/utils"
	"venue-tickets-api/web"
)

// PageHandler renders the ticket page in the persisted language.
type PageHandler struct {
	tmpl        *template.Template
	languages   *LanguageHandler
	texts       *locale.Table
	frameOrigin string
	currency    string
}

type pageData struct {
	Lang         string
	Dir          string
	FrameOrigin  string
	InitialTotal string
}

func NewPageHandler(languages *LanguageHandler, texts *locale.Table, frameOrigin, currencySymbol string) (*PageHandler, error) {
	// t is rebound per request; this placeholder only satisfies parsing.
	tmpl, err := web.Templates(template.FuncMap{"t": func(string) string { return "" }})
	if err != nil {
		return nil, err
	}
	return &PageHandler{
		tmpl:        tmpl,
		languages:   languages,
		texts:       texts,
		frameOrigin: frameOrigin,
		currency:    currencySymbol,
	}, nil
}

func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	lang := h.languages.Current(r)

	tmpl, err := h.tmpl.Clone()
	if err != nil {
		log.Printf("Error cloning page template: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	tmpl.Funcs(template.FuncMap{
		"t": func(key string) string { return h.texts.Text(key, lang, key) },
	})

	total := pricing.UnitPrice(1, false, decimal.Zero)
	data := pageData{
		Lang:         string(lang),
		Dir:          lang.Dir(),
		FrameOrigin:  h.frameOrigin,
		InitialTotal: utils.FormatAmount(total, h.currency),
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "index.html", data); err != nil {
		log.Printf("Error rendering page: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// Static serves the page script and styles.
func Static() http.Handler {
	return http.StripPrefix("/static/", http.FileServer(http.FS(web.Static())))
}
