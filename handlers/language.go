package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/sessions"

	"venue-tickets-api/config"
	"venue-tickets-api/locale"
	"venue-tickets-api/models"
	"venue-tickets-api/utils"
)

const prefsSessionName = "ticket-prefs"

// NewCookieStore builds the store the language preference lives in.
func NewCookieStore(cfg config.SessionConfig) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(cfg.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   cfg.MaxAge,
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

type LanguageHandler struct {
	store sessions.Store
	texts *locale.Table
}

func NewLanguageHandler(store sessions.Store, texts *locale.Table) *LanguageHandler {
	return &LanguageHandler{store: store, texts: texts}
}

// Current is the persisted language, Hebrew when nothing valid is stored.
func (h *LanguageHandler) Current(r *http.Request) locale.Lang {
	lang, _ := h.Stored(r)
	return lang
}

// Stored reports the persisted language and whether one was found.
func (h *LanguageHandler) Stored(r *http.Request) (locale.Lang, bool) {
	session, err := h.store.Get(r, prefsSessionName)
	if err != nil {
		return locale.Hebrew, false
	}
	stored, _ := session.Values[locale.StorageKey].(string)
	return locale.ParseLang(stored)
}

func (h *LanguageHandler) save(w http.ResponseWriter, r *http.Request, lang locale.Lang) error {
	// A cookie that fails to decode still yields a usable new session.
	session, _ := h.store.Get(r, prefsSessionName)
	session.Values[locale.StorageKey] = string(lang)
	return session.Save(r, w)
}

func (h *LanguageHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	var req models.LanguageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	lang, ok := locale.ParseLang(req.Language)
	if !ok {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Unsupported language")
		return
	}

	if err := h.save(w, r, lang); err != nil {
		log.Printf("Error saving language preference: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Could not save language")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data: models.LanguageResponse{
			Language:    string(lang),
			Dir:         lang.Dir(),
			SwitchLabel: h.texts.Text("language_switch", lang, ""),
		},
	})
}

func (h *LanguageHandler) GetTranslations(w http.ResponseWriter, r *http.Request) {
	lang := h.Current(r)
	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"language":     string(lang),
			"dir":          lang.Dir(),
			"translations": h.texts.Entries(),
		},
	})
}
