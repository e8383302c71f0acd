package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nikhilbhutani/design2code/internal/codegen"
	"github.com/nikhilbhutani/design2code/internal/history"
	"github.com/nikhilbhutani/design2code/internal/prompt"
	"github.com/nikhilbhutani/design2code/internal/stt"
	"github.com/nikhilbhutani/design2code/internal/upload"
)

// TranscriptSource exposes the finalized live transcript.
type TranscriptSource interface {
	LastTranscript() string
}

type CodegenHandler struct {
	generator   codegen.Generator
	prompts     *prompt.Library
	scratch     *upload.Scratch
	stt         stt.Provider
	transcripts TranscriptSource
	history     history.Recorder
	maxUpload   int64
	logger      *slog.Logger
}

type CodegenDeps struct {
	Generator   codegen.Generator
	Prompts     *prompt.Library
	Scratch     *upload.Scratch
	STT         stt.Provider
	Transcripts TranscriptSource
	History     history.Recorder
	MaxUpload   int64
	Logger      *slog.Logger
}

func NewCodegenHandler(d CodegenDeps) *CodegenHandler {
	if d.History == nil {
		d.History = history.Discard{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &CodegenHandler{
		generator:   d.Generator,
		prompts:     d.Prompts,
		scratch:     d.Scratch,
		stt:         d.STT,
		transcripts: d.Transcripts,
		history:     d.History,
		maxUpload:   d.MaxUpload,
		logger:      d.Logger.With("component", "codegen_handler"),
	}
}

type codeResponse struct {
	Code          string `json:"code"`
	HTML          string `json:"html"`
	CSS           string `json:"css"`
	Transcription string `json:"transcription,omitempty"`
	Provider      string `json:"provider,omitempty"`
	Model         string `json:"model,omitempty"`
}

type textRequest struct {
	Text          string `json:"text"`
	Transcription string `json:"transcription"`
	Prompt        string `json:"prompt"`
	Provider      string `json:"provider"`
	Model         string `json:"model"`
}

func (h *CodegenHandler) ImageToCode(w http.ResponseWriter, r *http.Request) {
	h.fromUpload(w, r, "image", prompt.SourceImage, "No image file uploaded")
}

func (h *CodegenHandler) SketchToCode(w http.ResponseWriter, r *http.Request) {
	h.fromUpload(w, r, "sketch", prompt.SourceSketch, "No sketch file uploaded")
}

func (h *CodegenHandler) fromUpload(w http.ResponseWriter, r *http.Request, field string, source prompt.Source, missingMsg string) {
	asset, ok := h.saveUpload(w, r, field, upload.Image, missingMsg)
	if !ok {
		return
	}
	defer h.remove(asset)

	image, err := asset.Read()
	if err != nil {
		writeInternal(w, h.logger, err)
		return
	}

	fullPrompt, err := h.prompts.Build(source, r.FormValue("prompt"), "")
	if err != nil {
		writeInternal(w, h.logger, err)
		return
	}

	res, ok := h.generate(w, r, codegen.Request{
		Prompt:        fullPrompt,
		Image:         image,
		ImageMIMEType: asset.MIMEType,
		Provider:      r.FormValue("provider"),
		Model:         r.FormValue("model"),
	})
	if !ok {
		return
	}
	h.record(r.Context(), source, fullPrompt, "", res)
	writeJSON(w, http.StatusOK, newCodeResponse(res, ""))
}

func (h *CodegenHandler) TextToCode(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "Text input is required")
		return
	}
	h.fromText(w, r, prompt.SourceText, req.Text, req)
}

// TranscriptionToCode generates from a transcript in the body, or from the
// last live transcription when the body has none.
func (h *CodegenHandler) TranscriptionToCode(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	text := strings.TrimSpace(req.Transcription)
	if text == "" && h.transcripts != nil {
		text = strings.TrimSpace(h.transcripts.LastTranscript())
	}
	if text == "" {
		writeError(w, http.StatusBadRequest, "No transcription available")
		return
	}
	h.fromText(w, r, prompt.SourceVoice, text, req)
}

func (h *CodegenHandler) fromText(w http.ResponseWriter, r *http.Request, source prompt.Source, text string, req textRequest) {
	fullPrompt, err := h.prompts.Build(source, req.Prompt, text)
	if err != nil {
		writeInternal(w, h.logger, err)
		return
	}

	res, ok := h.generate(w, r, codegen.Request{Prompt: fullPrompt, Provider: req.Provider, Model: req.Model})
	if !ok {
		return
	}

	transcription := ""
	if source == prompt.SourceVoice {
		transcription = text
	}
	h.record(r.Context(), source, fullPrompt, transcription, res)
	writeJSON(w, http.StatusOK, newCodeResponse(res, transcription))
}

func (h *CodegenHandler) VoiceToCode(w http.ResponseWriter, r *http.Request) {
	text, ok := h.transcribeUpload(w, r)
	if !ok {
		return
	}

	fullPrompt, err := h.prompts.Build(prompt.SourceVoice, r.FormValue("prompt"), text)
	if err != nil {
		writeInternal(w, h.logger, err)
		return
	}
	res, ok := h.generate(w, r, codegen.Request{
		Prompt:   fullPrompt,
		Provider: r.FormValue("provider"),
		Model:    r.FormValue("model"),
	})
	if !ok {
		return
	}
	h.record(r.Context(), prompt.SourceVoice, fullPrompt, text, res)
	writeJSON(w, http.StatusOK, newCodeResponse(res, text))
}

func (h *CodegenHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	text, ok := h.transcribeUpload(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"transcription": text})
}

func (h *CodegenHandler) transcribeUpload(w http.ResponseWriter, r *http.Request) (string, bool) {
	asset, ok := h.saveUpload(w, r, "audio", upload.Audio, "No audio file uploaded")
	if !ok {
		return "", false
	}
	defer h.remove(asset)

	resp, err := h.stt.Transcribe(r.Context(), stt.Request{
		FilePath: asset.Path,
		Language: r.FormValue("language"),
	})
	switch {
	case errors.Is(err, stt.ErrUnintelligible):
		writeError(w, http.StatusBadRequest, "Could not understand audio")
		return "", false
	case err != nil:
		writeFailure(w, h.logger, http.StatusBadGateway, "Transcription failed", err)
		return "", false
	}
	return resp.Text, true
}

func (h *CodegenHandler) saveUpload(w http.ResponseWriter, r *http.Request, field string, kind upload.Kind, missingMsg string) (*upload.Asset, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, missingMsg)
		return nil, false
	}

	asset, err := h.scratch.SaveFormFile(r, field, kind)
	switch {
	case errors.Is(err, upload.ErrMissingFile):
		writeError(w, http.StatusBadRequest, missingMsg)
		return nil, false
	case errors.Is(err, upload.ErrUnsupportedType):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return nil, false
	case err != nil:
		writeInternal(w, h.logger, err)
		return nil, false
	}
	return asset, true
}

func (h *CodegenHandler) generate(w http.ResponseWriter, r *http.Request, req codegen.Request) (*codegen.Result, bool) {
	res, err := h.generator.Generate(r.Context(), req)
	if err != nil {
		if errors.Is(err, codegen.ErrGenerationFailed) {
			writeFailure(w, h.logger, http.StatusBadGateway, "Code generation failed", err)
		} else {
			writeInternal(w, h.logger, err)
		}
		return nil, false
	}
	return res, true
}

func (h *CodegenHandler) remove(asset *upload.Asset) {
	if err := asset.Remove(); err != nil {
		h.logger.Warn("remove upload", "path", asset.Path, "error", err)
	}
}

func (h *CodegenHandler) record(ctx context.Context, source prompt.Source, fullPrompt, transcription string, res *codegen.Result) {
	err := h.history.Record(context.WithoutCancel(ctx), &history.Generation{
		Source:        string(source),
		Provider:      res.Provider,
		Model:         res.Model,
		Prompt:        fullPrompt,
		Transcription: transcription,
		Markup:        res.Markup,
		InputTokens:   res.InputTokens,
		OutputTokens:  res.OutputTokens,
		CostUSD:       res.CostUSD,
		LatencyMs:     res.LatencyMs,
	})
	if err != nil {
		h.logger.Warn("record generation history", "error", err)
	}
}

func newCodeResponse(res *codegen.Result, transcription string) codeResponse {
	html, css := codegen.SplitStyles(res.Markup)
	return codeResponse{
		Code:          res.Markup,
		HTML:          html,
		CSS:           css,
		Transcription: transcription,
		Provider:      res.Provider,
		Model:         res.Model,
	}
}
