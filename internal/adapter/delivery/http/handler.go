package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shorturls/internal/entity"
)

const (
	logSource       = "backend"
	layerHandler    = "handler"
	layerController = "controller"
)

// logEvent writes a structured event to the request scoped logger.
func logEvent(r *http.Request, level slog.Level, layer, msg string, attrs ...slog.Attr) {
	attrs = append([]slog.Attr{
		slog.String("source", logSource),
		slog.String("layer", layer),
	}, attrs...)

	httplog.LogEntry(r.Context()).LogAttrs(r.Context(), level, msg, attrs...)
}

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

type urlUseCase interface {
	ShortenURL(ctx context.Context, params entity.ShortenParams) (*entity.ShortURL, error)
	ResolveShortCode(ctx context.Context, shortCode string, visit entity.Visit) (*entity.ShortURL, error)
	GetURLStats(ctx context.Context, shortCode string) (*entity.URLStats, error)
}

type urlHandler struct {
	useCase  urlUseCase
	validate *validator.Validate
}

func newURLHandler(useCase urlUseCase, validate *validator.Validate) *urlHandler {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	validate.RegisterValidation("shortcode", validateShortCode)

	return &urlHandler{
		useCase:  useCase,
		validate: validate,
	}
}

func (h *urlHandler) shortenURL(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		if errors.Is(err, io.EOF) {
			logEvent(r, slog.LevelError, layerHandler, "missing required field: url")

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyRequestBodyResponse)
			return
		}

		logEvent(r, slog.LevelError, layerHandler, "invalid request body")

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		if isMissingURL(err) {
			logEvent(r, slog.LevelError, layerHandler, "missing required field: url")
		} else {
			logEvent(r, slog.LevelError, layerHandler, "request validation failed", slog.Any("err", err))
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return
	}

	url, err := h.useCase.ShortenURL(r.Context(), req.toParams())
	if err != nil {
		if errors.Is(err, entity.ErrShortCodeExists) {
			logEvent(r, slog.LevelWarn, layerController, "shortcode already in use",
				slog.String("shortcode", req.ShortCode))

			render.Status(r, http.StatusConflict)
			render.JSON(w, r, shortCodeExistsResponse)
			return
		}

		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))
		logEvent(r, slog.LevelError, layerController, "failed to create short url", slog.Any("err", err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	logEvent(r, slog.LevelInfo, layerController, "short url created successfully",
		slog.String("shortcode", url.ShortCode))

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, shortenResponse{
		ShortLink: shortLink(r, url.ShortCode),
		Expiry:    url.Expiry,
	})
}

func (h *urlHandler) getURLStats(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")
	if shortCode == "" {
		h.shortCodeRequired(w, r)
		return
	}

	stats, err := h.useCase.GetURLStats(r.Context(), shortCode)
	if err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			logEvent(r, slog.LevelWarn, layerController, "no url found for shortcode",
				slog.String("shortcode", shortCode))

			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, urlNotFoundResponse)
			return
		}

		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))
		logEvent(r, slog.LevelError, layerController, "failed to get url stats", slog.Any("err", err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	logEvent(r, slog.LevelInfo, layerController, "stats fetched for shortcode",
		slog.String("shortcode", shortCode))

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLStatsResponse(stats))
}

func (h *urlHandler) shortCodeRequired(w http.ResponseWriter, r *http.Request) {
	logEvent(r, slog.LevelError, layerHandler, "shortcode parameter is missing")

	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, shortCodeRequiredResponse)
}

func (h *urlHandler) redirect(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	visit := entity.Visit{
		Referrer: r.Referer(),
		IP:       clientIP(r),
	}

	url, err := h.useCase.ResolveShortCode(r.Context(), shortCode, visit)
	if err != nil {
		switch {
		case errors.Is(err, entity.ErrURLNotFound):
			logEvent(r, slog.LevelWarn, layerController, "no url found for shortcode",
				slog.String("shortcode", shortCode))

			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, urlNotFoundResponse)
		case errors.Is(err, entity.ErrURLExpired):
			logEvent(r, slog.LevelWarn, layerController, "short url expired",
				slog.String("shortcode", shortCode))

			render.Status(r, http.StatusGone)
			render.JSON(w, r, urlExpiredResponse)
		default:
			httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))
			logEvent(r, slog.LevelError, layerController, "failed to resolve shortcode", slog.Any("err", err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, serverErrorResponse)
		}
		return
	}

	logEvent(r, slog.LevelInfo, layerController, "redirected shortcode",
		slog.String("shortcode", shortCode))

	http.Redirect(w, r, url.OriginalURL, http.StatusFound)
}

// shortLink builds <scheme>://<host>/<shortCode> from the incoming request.
func shortLink(r *http.Request, shortCode string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return fmt.Sprintf("%s://%s/%s", scheme, r.Host, shortCode)
}

// clientIP strips the port that RemoteAddr carries unless RealIP already replaced it.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
