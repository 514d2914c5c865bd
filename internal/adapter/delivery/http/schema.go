package http

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shorturls/internal/entity"
)

const statusError = "error"

// shortCodeRegexp lists the characters a caller-supplied short code may use.
var shortCodeRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func validateShortCode(fl validator.FieldLevel) bool {
	return shortCodeRegexp.MatchString(fl.Field().String())
}

// shortenRequest represents the structure for a request to shorten a URL.
type shortenRequest struct {
	URL       string  `json:"url" validate:"required"`
	Validity  float64 `json:"validity" validate:"omitempty,gt=0"`
	ShortCode string  `json:"shortcode" validate:"omitempty,max=32,shortcode"`
}

func (req shortenRequest) toParams() entity.ShortenParams {
	return entity.ShortenParams{
		OriginalURL: req.URL,
		ShortCode:   req.ShortCode,
		Validity:    req.Validity,
	}
}

// shortenResponse represents the structure for a response to a shorten request.
type shortenResponse struct {
	ShortLink string    `json:"shortLink"`
	Expiry    time.Time `json:"expiry"`
}

// urlStatsResponse represents the structure for a response containing URL statistics.
type urlStatsResponse struct {
	OriginalURL    string          `json:"originalUrl"`
	CreatedAt      time.Time       `json:"createdAt"`
	Expiry         time.Time       `json:"expiry"`
	TotalClicks    int             `json:"totalClicks"`
	ClickAnalytics []clickResponse `json:"clickAnalytics"`
}

type clickResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Referrer  string    `json:"referrer"`
	Location  string    `json:"location"`
}

// toURLStatsResponse converts an entity.URLStats to a urlStatsResponse.
func toURLStatsResponse(stats *entity.URLStats) urlStatsResponse {
	clicks := make([]clickResponse, 0, len(stats.ClickAnalytics))
	for _, c := range stats.ClickAnalytics {
		clicks = append(clicks, clickResponse{
			Timestamp: c.Timestamp,
			Referrer:  c.Referrer,
			Location:  c.Location,
		})
	}

	return urlStatsResponse{
		OriginalURL:    stats.OriginalURL,
		CreatedAt:      stats.CreatedAt,
		Expiry:         stats.Expiry,
		TotalClicks:    stats.TotalClicks,
		ClickAnalytics: clicks,
	}
}

// validationError represents an individual validation error.
type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse represents a structured error response.
type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  []validationError `json:"errors,omitempty"`
}

// Predefined error responses for common scenarios.
var (
	emptyRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "url is required",
	}

	invalidRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "invalid request body",
	}

	shortCodeRequiredResponse = errorResponse{
		Status:  statusError,
		Message: "shortcode is required",
	}

	shortCodeExistsResponse = errorResponse{
		Status:  statusError,
		Message: "shortcode already in use",
	}

	urlNotFoundResponse = errorResponse{
		Status:  statusError,
		Message: "short url not found",
	}

	urlExpiredResponse = errorResponse{
		Status:  statusError,
		Message: "short url expired",
	}

	serverErrorResponse = errorResponse{
		Status:  statusError,
		Message: "server error occurred",
	}
)

// messageForTag returns a user-friendly message based on the validation tag.
func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "gt":
		return "must be a positive number"
	case "shortcode":
		return "only letters, digits, '-' and '_' are allowed"
	case "max":
		return "value is too long"
	default:
		return "invalid value"
	}
}

// getValidationErrors processes validation errors and returns a list of validationError.
func getValidationErrors(err error) []validationError {
	var validationErrs []validationError

	errs, ok := err.(validator.ValidationErrors)
	if ok {
		for _, e := range errs {
			validationErrs = append(validationErrs, validationError{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return validationErrs
}

// isMissingURL reports whether err says the url field was absent.
func isMissingURL(err error) bool {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}

	for _, e := range errs {
		if e.Field() == "url" && e.Tag() == "required" {
			return true
		}
	}

	return false
}

// validationErrorResponse constructs an errorResponse for validation errors.
func validationErrorResponse(err error) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors:  getValidationErrors(err),
	}
}
