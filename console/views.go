package console

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-admin-console/backend"
	"github.com/jrsteele09/go-admin-console/gateway"
	"github.com/jrsteele09/go-admin-console/internal/errors"
	"github.com/jrsteele09/go-admin-console/menu"
)

// Component names the backend's menus may reference.
const (
	ViewUserManagement          = "UserManagement"
	ViewRoleManagement          = "RoleManagement"
	ViewPermissionManagement    = "PermissionManagement"
	ViewMenuManagement          = "MenuManagement"
	ViewAiAppTypeManagement     = "AiAppTypeManagement"
	ViewAiApplicationManagement = "AiApplicationManagement"
	ViewAiWorkshop              = "AiWorkshop"
)

const maxViewBody = 1 << 20

func (s *Server) newRegistry() (*menu.Registry, error) {
	return menu.NewRegistry(menu.FallbackView, map[string]menu.Loader{
		ViewUserManagement:          s.resourceLoader("Users", "/user"),
		ViewRoleManagement:          s.resourceLoader("Roles", "/role"),
		ViewPermissionManagement:    s.resourceLoader("Permissions", "/permission"),
		ViewAiAppTypeManagement:     s.resourceLoader("AI App Types", "/ai-app-type"),
		ViewAiApplicationManagement: s.resourceLoader("AI Applications", "/ai-application"),
		ViewMenuManagement:          s.menuManagementLoader(),
		ViewAiWorkshop:              s.workshopLoader(),
		menu.FallbackView:           s.comingSoonLoader(),
	})
}

// resourceLoader serves the standard CRUD view over a backend prefix. GET
// lists a page, or one record with ?id=; POST, PUT and DELETE pass through.
func (s *Server) resourceLoader(title, prefix string) menu.Loader {
	return func() (menu.View, error) {
		res := backend.NewResource(s.gateway, prefix)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id := r.URL.Query().Get("id")

			var (
				out any
				err error
			)
			switch r.Method {
			case http.MethodGet:
				if id != "" {
					var record json.RawMessage
					err = res.ByID(ctx, id, &record)
					out = record
				} else {
					out, err = res.Page(ctx, r.URL.Query())
				}
			case http.MethodPost, http.MethodPut:
				body, rerr := readJSONBody(r)
				if rerr != nil {
					writeJSONError(w, http.StatusBadRequest, rerr.Error())
					return
				}
				var result json.RawMessage
				if r.Method == http.MethodPost {
					err = res.Create(ctx, body, &result)
				} else {
					err = res.Update(ctx, body, &result)
				}
				out = result
			case http.MethodDelete:
				if id == "" {
					writeJSONError(w, http.StatusBadRequest, "id is required")
					return
				}
				err = res.Delete(ctx, id)
			default:
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}

			if err != nil {
				s.viewError(w, r, title, err)
				return
			}
			s.renderView(w, r, title, out)
		}), nil
	}
}

func (s *Server) menuManagementLoader() menu.Loader {
	return func() (menu.View, error) {
		menus := backend.NewMenus(s.gateway)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			tree, err := menus.Tree(r.Context())
			if err != nil {
				s.viewError(w, r, "Menus", err)
				return
			}
			s.renderView(w, r, "Menus", menu.SortNodes(tree))
		}), nil
	}
}

func (s *Server) workshopLoader() menu.Loader {
	return func() (menu.View, error) {
		workshop := backend.NewWorkshop(s.gateway)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				out json.RawMessage
				err error
			)
			q := r.URL.Query()
			switch {
			case q.Get("appId") != "":
				out, err = workshop.Application(r.Context(), q.Get("appId"))
			case q.Get("typeId") != "":
				out, err = workshop.Applications(r.Context(), q.Get("typeId"))
			default:
				out, err = workshop.Categories(r.Context())
			}
			if err != nil {
				s.viewError(w, r, "AI Workshop", err)
				return
			}
			s.renderView(w, r, "AI Workshop", out)
		}), nil
	}
}

func (s *Server) comingSoonLoader() menu.Loader {
	return func() (menu.View, error) {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			title := viewTitle(r.Context(), "Coming soon")
			if wantsJSON(r) {
				writeJSON(w, http.StatusOK, map[string]string{"title": title, "status": "coming soon"})
				return
			}
			s.renderPage(w, r, PageData{Title: title, Message: "This page is coming soon."})
		}), nil
	}
}

func (s *Server) renderView(w http.ResponseWriter, r *http.Request, title string, out any) {
	if wantsJSON(r) || r.Method != http.MethodGet {
		if out == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, out)
		return
	}
	body, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Err(err).Str("path", r.URL.Path).Msg("Failed to encode view data")
	}
	s.renderPage(w, r, PageData{Title: viewTitle(r.Context(), title), Body: string(body)})
}

// viewError maps a gateway failure onto the response. Application errors
// have already been announced through the notifier.
func (s *Server) viewError(w http.ResponseWriter, r *http.Request, title string, err error) {
	var appErr *gateway.AppError
	switch {
	case errors.As(err, &appErr):
		if wantsJSON(r) || r.Method != http.MethodGet {
			writeJSONError(w, http.StatusBadRequest, appErr.Message)
			return
		}
		s.renderPage(w, r, PageData{Title: viewTitle(r.Context(), title), Message: appErr.Message})
	case gateway.IsAuthExpired(err):
		if !s.session.IsAuthenticated() {
			s.denyUnauthenticated(w, r)
			return
		}
		writeJSONError(w, http.StatusForbidden, "forbidden")
	default:
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("Backend call failed")
		writeJSONError(w, http.StatusBadGateway, "backend unavailable")
	}
}

func viewTitle(ctx context.Context, fallback string) string {
	if meta, ok := RouteMetaFrom(ctx); ok && meta.Title != "" {
		return meta.Title
	}
	return fallback
}

func readJSONBody(r *http.Request) (json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxViewBody))
	if err != nil {
		return nil, errors.Wrapf(err, "read body")
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || !json.Valid(body) {
		return nil, errors.Wrapf(errors.ErrUnsupported, "body must be JSON")
	}
	return json.RawMessage(body), nil
}
