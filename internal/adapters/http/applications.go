package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
	"github.com/kirillkom/patent-pod-intake/internal/core/ports"
	"github.com/kirillkom/patent-pod-intake/internal/infrastructure/formdata"
)

const defaultMaxUploadBytes = 50 << 20

func (rt *Router) uploadApplication(w http.ResponseWriter, r *http.Request) {
	limit := rt.cfg.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error: fmt.Sprintf("request body exceeds %d bytes", limit),
				Code:  "payload_too_large",
			})
			return
		}
		rt.writeError(w, r, domain.WrapError(domain.ErrMalformedRequest, "read upload body", err))
		return
	}

	parts, err := formdata.ParseRequest(r.Header.Get("Content-Type"), body)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	req, err := uploadRequestFromParts(parts)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	req.OwnerID = ownerID(r)

	result, err := rt.intake.Upload(r.Context(), req)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// uploadRequestFromParts splits form fields from file parts. Unknown fields
// are ignored.
func uploadRequestFromParts(parts []domain.UploadedPart) (ports.UploadRequest, error) {
	var req ports.UploadRequest
	for _, part := range parts {
		if part.IsFile {
			req.Files = append(req.Files, part)
			continue
		}
		value := strings.TrimSpace(string(part.RawBytes))
		switch part.Name {
		case "title":
			req.Title = value
		case "applicationId":
			req.ApplicationID = value
		case "isPreFiling":
			req.IsPreFiling = parseFormBool(value)
		case "isProvisional":
			req.IsProvisional = parseFormBool(value)
		case "filingDate":
			if value == "" {
				continue
			}
			date, err := parseFilingDate(value)
			if err != nil {
				return ports.UploadRequest{}, domain.WrapError(domain.ErrInvalidInput, "parse filingDate", err)
			}
			req.FilingDate = &date
		}
	}
	return req, nil
}

func parseFilingDate(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD, got %q", value)
	}
	return t.UTC(), nil
}

func parseFormBool(value string) bool {
	switch strings.ToLower(value) {
	case "on", "yes", "y":
		return true
	}
	b, _ := strconv.ParseBool(value)
	return b
}

func (rt *Router) classifyApplication(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeOptionalJSON(r, &body); err != nil {
		rt.writeError(w, r, err)
		return
	}

	result, err := rt.classifier.Classify(r.Context(), ports.ClassifyRequest{
		OwnerID:       ownerID(r),
		ApplicationID: r.PathValue("id"),
		TextOverride:  body.Text,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) saveApplication(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Pods                  []ports.CommitPOD `json:"pods"`
		Title                 string            `json:"title"`
		PrimaryClassification string            `json:"primaryClassification"`
		TechnologyArea        string            `json:"technologyArea"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "decode save request", err))
		return
	}

	view, err := rt.review.Commit(r.Context(), ports.CommitRequest{
		OwnerID:               ownerID(r),
		ApplicationID:         r.PathValue("id"),
		Pods:                  body.Pods,
		Title:                 body.Title,
		PrimaryClassification: body.PrimaryClassification,
		TechnologyArea:        body.TechnologyArea,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) listApplications(w http.ResponseWriter, r *http.Request) {
	filter := domain.ApplicationFilter{OwnerID: ownerID(r)}
	if raw := r.URL.Query().Get("archived"); raw != "" {
		archived, err := strconv.ParseBool(raw)
		if err != nil {
			rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "parse archived", err))
			return
		}
		filter.Archived = archived
	}

	apps, err := rt.apps.List(r.Context(), filter)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if apps == nil {
		apps = []domain.Application{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

func (rt *Router) getApplication(w http.ResponseWriter, r *http.Request) {
	view, err := rt.apps.Get(r.Context(), ownerID(r), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) archiveApplication(w http.ResponseWriter, r *http.Request) {
	if err := rt.apps.Archive(r.Context(), ownerID(r), r.PathValue("id")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func ownerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(userIDHeader))
}

// decodeOptionalJSON accepts an empty body as the zero value.
func decodeOptionalJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(out)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return domain.WrapError(domain.ErrInvalidInput, "decode request body", err)
}
