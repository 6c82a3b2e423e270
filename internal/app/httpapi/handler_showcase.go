package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/showcase"
	showcasesvc "github.com/Aromatic05/CurioBox-sub000/internal/app/services/showcase"
	"github.com/Aromatic05/CurioBox-sub000/internal/middleware"
)

type postRequest struct {
	Title   string   `json:"title" validate:"required,max=100"`
	Content string   `json:"content" validate:"max=5000"`
	Images  []string `json:"images" validate:"max=9,dive,required,max=512"`
	TagIDs  []string `json:"tag_ids" validate:"max=20,dive,required"`
}

type postPatchRequest struct {
	Title   *string   `json:"title" validate:"omitempty,min=1,max=100"`
	Content *string   `json:"content" validate:"omitempty,max=5000"`
	Images  *[]string `json:"images" validate:"omitempty,max=9,dive,required,max=512"`
	TagIDs  *[]string `json:"tag_ids" validate:"omitempty,max=20,dive,required"`
}

type commentRequest struct {
	Content  string `json:"content" validate:"required,max=1000"`
	ParentID string `json:"parent_id"`
}

type tagRequest struct {
	Name string `json:"name" validate:"required,max=30"`
}

func (h *handler) registerShowcaseRoutes(api *mux.Router, public, private wrap) {
	api.Handle("/posts", public(h.listPosts)).Methods(http.MethodGet)
	api.Handle("/posts", private(h.createPost)).Methods(http.MethodPost)
	api.Handle("/posts/{id}", public(h.getPost)).Methods(http.MethodGet)
	api.Handle("/posts/{id}", private(h.updatePost)).Methods(http.MethodPatch)
	api.Handle("/posts/{id}", private(h.deletePost)).Methods(http.MethodDelete)
	api.Handle("/posts/{id}/like", private(h.toggleLike)).Methods(http.MethodPost)
	api.Handle("/posts/{id}/comments", public(h.listComments)).Methods(http.MethodGet)
	api.Handle("/posts/{id}/comments", private(h.createComment)).Methods(http.MethodPost)
	api.Handle("/comments/{id}", private(h.deleteComment)).Methods(http.MethodDelete)
	api.Handle("/tags", public(h.listTags)).Methods(http.MethodGet)
}

func actor(r *http.Request) showcasesvc.Actor {
	return showcasesvc.Actor{
		UserID: middleware.GetUserID(r.Context()),
		Admin:  middleware.IsAdmin(r.Context()),
	}
}

func (h *handler) listPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := showcase.PostFilter{
		TagID:    strings.TrimSpace(q.Get("tag")),
		AuthorID: strings.TrimSpace(q.Get("author")),
		Query:    q.Get("q"),
		Sort:     showcase.PostSort(strings.TrimSpace(q.Get("sort"))),
	}
	res, err := h.app.Showcase.ListPosts(r.Context(), filter, pageRequest(r), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) createPost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	post, err := h.app.Showcase.CreatePost(r.Context(), actor(r), showcasesvc.PostInput{
		Title:   req.Title,
		Content: req.Content,
		Images:  req.Images,
		TagIDs:  req.TagIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *handler) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.app.Showcase.GetPost(r.Context(), mux.Vars(r)["id"], middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *handler) updatePost(w http.ResponseWriter, r *http.Request) {
	var req postPatchRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	post, err := h.app.Showcase.UpdatePost(r.Context(), actor(r), mux.Vars(r)["id"], showcasesvc.PostPatch{
		Title:   req.Title,
		Content: req.Content,
		Images:  req.Images,
		TagIDs:  req.TagIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *handler) deletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Showcase.DeletePost(r.Context(), actor(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) toggleLike(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.Showcase.ToggleLike(r.Context(), actor(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) listComments(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.Showcase.ListComments(r.Context(), mux.Vars(r)["id"], pageRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) createComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	c, err := h.app.Showcase.CreateComment(r.Context(), actor(r), mux.Vars(r)["id"], strings.TrimSpace(req.ParentID), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	removed, err := h.app.Showcase.DeleteComment(r.Context(), actor(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *handler) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.app.Showcase.ListTags(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": tags})
}

func (h *handler) createTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tag, err := h.app.Showcase.CreateTag(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (h *handler) deleteTag(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Showcase.DeleteTag(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
