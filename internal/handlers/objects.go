package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/ftpstore/internal/storage"
	"github.com/charlesng35/ftpstore/internal/thumbnail"
	apperrors "github.com/charlesng35/ftpstore/pkg/errors"
	"github.com/charlesng35/ftpstore/pkg/logger"
	"github.com/charlesng35/ftpstore/pkg/response"
)

// DefaultMaxUploadBytes caps request bodies accepted by ObjectHandler.Put.
const DefaultMaxUploadBytes int64 = 64 << 20

// ObjectHandler exposes write, delete and resolve over HTTP.
type ObjectHandler struct {
	store    storage.Storage
	sizes    thumbnail.Sizes
	tempDir  string
	maxBytes int64
	log      *zap.Logger
}

// NewObjectHandler constructs a handler over store. sizes are the configured thumbnail
// sizes a request may select from; uploads are spooled under tempDir.
func NewObjectHandler(store storage.Storage, sizes thumbnail.Sizes, tempDir string) (*ObjectHandler, error) {
	if store == nil {
		return nil, errors.New("object handler: storage is required")
	}
	if sizes == nil {
		sizes = thumbnail.Sizes{}
	}
	return &ObjectHandler{
		store:    store,
		sizes:    sizes,
		tempDir:  tempDir,
		maxBytes: DefaultMaxUploadBytes,
		log:      logger.WithModule("http.objects"),
	}, nil
}

type objectQuery struct {
	Sizes []string `form:"size" mapstructure:"size" validate:"dive,required"`
}

type stepView struct {
	Path    string `json:"path"`
	Error   string `json:"error,omitempty"`
	Ignored string `json:"ignored,omitempty"`
}

type resultView struct {
	Path       string              `json:"path"`
	Outcome    storage.Outcome     `json:"outcome"`
	Original   stepView            `json:"original"`
	Thumbnails map[string]stepView `json:"thumbnails,omitempty"`
}

// Put stores the request body at the object path and generates the selected sizes.
func (h *ObjectHandler) Put(c *gin.Context) {
	objectPath, sizes, ok := h.target(c)
	if !ok {
		return
	}

	spool, err := h.spool(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer os.Remove(spool)

	res, err := h.store.Put(requestContext(c), objectPath, storage.FileSource(spool), sizes)
	view := writeView(res)
	if err != nil {
		response.Failure(c, err, view)
		return
	}
	response.Success(c, http.StatusCreated, view)
}

// Delete removes the object and the selected sizes. Absent targets are not an error.
func (h *ObjectHandler) Delete(c *gin.Context) {
	objectPath, sizes, ok := h.target(c)
	if !ok {
		return
	}

	res, err := h.store.Remove(requestContext(c), objectPath, sizes)
	view := deleteView(res)
	if err != nil {
		response.Failure(c, err, view)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// Resolve returns the public URLs of the object and the selected sizes.
func (h *ObjectHandler) Resolve(c *gin.Context) {
	objectPath, sizes, ok := h.target(c)
	if !ok {
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"path": objectPath,
		"urls": h.store.Resolve(objectPath, sizes),
	})
}

// target reads the object path and the requested sizes. With no size parameter every
// configured size is selected.
func (h *ObjectHandler) target(c *gin.Context) (string, thumbnail.Sizes, bool) {
	objectPath := strings.TrimLeft(c.Param("path"), "/")
	if objectPath == "" {
		response.Error(c, apperrors.NewBadRequest("object path is required"))
		return "", nil, false
	}

	var query objectQuery
	if !bindQuery(c, &query) {
		return "", nil, false
	}
	if len(query.Sizes) == 0 {
		return objectPath, h.sizes, true
	}

	selected := make(thumbnail.Sizes, len(query.Sizes))
	for _, key := range query.Sizes {
		key = strings.ToLower(strings.TrimSpace(key))
		size, found := h.sizes[key]
		if !found {
			response.Error(c, apperrors.NewBadRequest(fmt.Sprintf("unknown thumbnail size %q", key)))
			return "", nil, false
		}
		selected[key] = size
	}
	return objectPath, selected, true
}

func (h *ObjectHandler) spool(c *gin.Context) (string, error) {
	file, err := os.CreateTemp(h.tempDir, "ftpstore-upload-*")
	if err != nil {
		return "", apperrors.Wrap(err, "create upload spool")
	}
	name := file.Name()

	body := http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	_, copyErr := io.Copy(file, body)
	closeErr := file.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(name)
		var tooLarge *http.MaxBytesError
		if errors.As(copyErr, &tooLarge) {
			return "", apperrors.NewBadRequest(fmt.Sprintf("body exceeds %d bytes", h.maxBytes))
		}
		h.log.Warn("spool upload failed", zap.Error(errors.Join(copyErr, closeErr)))
		return "", apperrors.Wrap(errors.Join(copyErr, closeErr), "read upload body")
	}
	return name, nil
}

func writeView(res *storage.WriteResult) resultView {
	if res == nil {
		return resultView{Outcome: storage.OutcomeFailure}
	}
	return resultView{
		Path:       res.Path,
		Outcome:    res.Outcome(),
		Original:   toStepView(res.Original),
		Thumbnails: toStepViews(res.Thumbnails),
	}
}

func deleteView(res *storage.DeleteResult) resultView {
	if res == nil {
		return resultView{Outcome: storage.OutcomeFailure}
	}
	return resultView{
		Path:       res.Path,
		Outcome:    res.Outcome(),
		Original:   toStepView(res.Original),
		Thumbnails: toStepViews(res.Thumbnails),
	}
}

func toStepView(step storage.StepResult) stepView {
	view := stepView{Path: step.Path}
	if step.Err != nil {
		view.Error = step.Err.Error()
	}
	if step.Ignored != nil {
		view.Ignored = step.Ignored.Error()
	}
	return view
}

func toStepViews(steps map[string]storage.StepResult) map[string]stepView {
	if len(steps) == 0 {
		return nil
	}
	out := make(map[string]stepView, len(steps))
	for key, step := range steps {
		out[key] = toStepView(step)
	}
	return out
}

func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}
