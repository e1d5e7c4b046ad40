package server

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
)

//go:embed webui/*
var uiFS embed.FS

func (a *App) RegisterWebUI(prefix string) {
	if prefix == "" {
		prefix = "/ui/"
	}
	// нормализуем
	base := strings.TrimSuffix(prefix, "/")
	slash := base + "/"

	sub, err := fs.Sub(uiFS, "webui")
	if err != nil {
		// если webui нет в бинаре, лучше сразу паникнуть — иначе будет 404/301
		panic(err)
	}

	// 1) /ui -> /ui/ (одноразовый редирект)
	a.Router.HandleFunc(base, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, slash, http.StatusFound) // 302
	}).Methods(http.MethodGet)

	// 2) статика
	a.Router.PathPrefix(slash).Handler(
		http.StripPrefix(slash, http.FileServer(http.FS(sub))),
	).Methods(http.MethodGet)
}
