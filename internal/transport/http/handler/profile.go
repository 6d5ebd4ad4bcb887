package handler

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/marisec-auth/internal/application/user"
	"github.com/marisec-auth/internal/transport/http/middleware"
)

const (
	avatarField     = "avatar"
	multipartMemory = 1 << 20
	sniffLen        = 512
)

// ProfileHandler serves the authenticated user's own profile.
type ProfileHandler struct {
	svc user.Service
}

func NewProfileHandler(svc user.Service) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no_token", "no token")
		return
	}
	p, err := h.svc.Profile(r.Context(), ident.User)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileView(p))
}

func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no_token", "no token")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, user.MaxAvatarBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "avatar exceeds 5 MiB")
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", "expected multipart form with an avatar file")
		return
	}
	file, fh, err := r.FormFile(avatarField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "avatar file is required")
		return
	}
	defer file.Close()

	// Trust the bytes, not the client's Content-Type header.
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", "could not read avatar")
		return
	}
	head = head[:n]

	p, err := h.svc.UploadAvatar(r.Context(), ident.User, user.AvatarUpload{
		Body:        io.MultiReader(bytes.NewReader(head), file),
		Size:        fh.Size,
		ContentType: http.DetectContentType(head),
	})
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileView(p))
}
