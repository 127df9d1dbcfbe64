package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"analyzeit/internal/apiclient"
	"analyzeit/internal/shared/metrics"
	"analyzeit/internal/shared/telemetry"
)

// MaxImageBytes is the largest accepted image (10 MiB).
const MaxImageBytes = 10 * 1024 * 1024

// Messages shown to the user.
const (
	MsgTooLarge    = "A imagem excede o tamanho máximo de 10MB"
	MsgUnsupported = "Formato de arquivo não suportado"
	MsgSubmitted   = "Imagem enviada para análise!"
	MsgSubmitError = "Erro ao enviar a imagem. Tente novamente."
	MsgNoImage     = "Selecione uma imagem antes de enviar."
)

var (
	ErrNoImage    = errors.New("no image selected")
	ErrSubmitting = errors.New("submission in progress")
)

// ValidationError rejects a file before any network call.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string { return "invalid image: " + e.Reason }

// State is the upload flow state of one view.
type State int

const (
	Empty State = iota
	Selected
	Submitting
)

func (s State) String() string {
	switch s {
	case Selected:
		return "selected"
	case Submitting:
		return "submitting"
	default:
		return "empty"
	}
}

// Image is a staged file.
type Image struct {
	FileName string
	MIME     string
	Size     int64
	Data     []byte
}

// DataURL encodes the image for the analysis API.
func (i Image) DataURL() string {
	return "data:" + i.MIME + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// HumanSize is the size label shown next to the preview.
func (i Image) HumanSize() string {
	return humanize.Bytes(uint64(i.Size))
}

// Submitter sends a staged image for analysis.
type Submitter interface {
	SubmitAnalysis(ctx context.Context, token, dataURL string) (*apiclient.Response, error)
}

// Flow stages at most one image for one view and submits it.
type Flow struct {
	UserID string
	ViewID string

	mu          sync.Mutex
	state       State
	image       *Image
	notes       *Notifications
	submitter   Submitter
	afterSubmit func(userID string)
	now         func() time.Time
}

func newFlow(userID, viewID string, submitter Submitter, afterSubmit func(string), now func() time.Time) *Flow {
	return &Flow{
		UserID:      userID,
		ViewID:      viewID,
		notes:       NewNotifications(now),
		submitter:   submitter,
		afterSubmit: afterSubmit,
		now:         now,
	}
}

// State returns the current state and staged image, if any.
func (f *Flow) State() (State, *Image) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.image == nil {
		return f.state, nil
	}
	img := *f.image
	return f.state, &img
}

// Notifications returns the view's notification list.
func (f *Flow) Notifications() *Notifications { return f.notes }

// Select stages the file read from r, replacing any staged image. Oversized
// or non-image files leave the state unchanged and raise an error
// notification.
func (f *Flow) Select(fileName string, r io.Reader) error {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxImageBytes {
		return f.reject("too_large", MsgTooLarge)
	}
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return f.reject("unsupported_format", MsgUnsupported)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Submitting {
		return ErrSubmitting
	}
	f.image = &Image{
		FileName: fileName,
		MIME:     mime.String(),
		Size:     int64(len(data)),
		Data:     data,
	}
	f.state = Selected
	return nil
}

// Remove discards the staged image.
func (f *Flow) Remove() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Submitting {
		return ErrSubmitting
	}
	f.image = nil
	f.state = Empty
	return nil
}

// Submit sends the staged image with the caller's token. On success the view
// returns to Empty; on failure the image stays staged.
func (f *Flow) Submit(ctx context.Context, token string) error {
	f.mu.Lock()
	switch f.state {
	case Empty:
		f.mu.Unlock()
		f.notes.Push(KindError, MsgNoImage)
		return ErrNoImage
	case Submitting:
		f.mu.Unlock()
		return ErrSubmitting
	}
	img := *f.image
	f.state = Submitting
	f.mu.Unlock()

	start := f.now()
	_, err := f.submitter.SubmitAnalysis(ctx, token, img.DataURL())
	metrics.ObserveSubmitDurationMs(float64(f.now().Sub(start).Milliseconds()))

	f.mu.Lock()
	if err != nil {
		f.state = Selected
	} else {
		f.state = Empty
		f.image = nil
	}
	f.mu.Unlock()

	if err != nil {
		metrics.IncAnalysisSubmitFailed()
		telemetry.Warn("upload.submit_failed", map[string]any{
			"user_id": f.UserID,
			"view_id": f.ViewID,
			"error":   err,
		})
		f.notes.Push(KindError, MsgSubmitError)
		return fmt.Errorf("submit analysis: %w", err)
	}

	metrics.IncAnalysisSubmitted()
	telemetry.Info("upload.submitted", map[string]any{
		"user_id": f.UserID,
		"view_id": f.ViewID,
		"bytes":   img.Size,
		"mime":    img.MIME,
	})
	f.notes.Push(KindSuccess, MsgSubmitted)
	if f.afterSubmit != nil {
		f.afterSubmit(f.UserID)
	}
	return nil
}

func (f *Flow) reject(reason, message string) error {
	f.notes.Push(KindError, message)
	metrics.IncUploadRejected(reason)
	return &ValidationError{Reason: reason, Message: message}
}
