package webhooks

import (
	"encoding/xml"
	"errors"
	"net/http"
	"strings"

	"callout-engine/internal/apperrors"
	"callout-engine/internal/metrics"
	"callout-engine/pkg/logger"

	"github.com/gin-gonic/gin"
)

const signatureHeader = "X-Twilio-Signature"

type errorsDoc struct {
	XMLName xml.Name `xml:"errors"`
	Errors  []string `xml:"error"`
}

// Handler adapts the service to the provider's callback conventions: signed
// form posts in, TwiML out, errors as XML documents.
func Handler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jsonOnly(c.GetHeader("Accept")) {
			c.Status(http.StatusNotAcceptable)
			return
		}

		if err := c.Request.ParseForm(); err != nil {
			renderErrors(c, http.StatusBadRequest, "request body is not a valid form")
			return
		}
		params := make(map[string]string, len(c.Request.PostForm))
		for k, vs := range c.Request.PostForm {
			if len(vs) > 0 {
				params[k] = vs[0]
			}
		}

		resp, err := svc.HandleCallEvent(c.Request.Context(), Request{
			URL:       requestURL(c.Request),
			Signature: c.GetHeader(signatureHeader),
			Params:    params,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		metrics.PhoneCallEvent(params["CallStatus"])
		c.Data(http.StatusCreated, "text/xml", []byte(resp.TwiML))
	}
}

func respondError(c *gin.Context, err error) {
	switch {
	case apperrors.IsAuthorization(err):
		// no body: an unauthenticated caller learns nothing
		c.Status(http.StatusForbidden)
	case apperrors.IsValidation(err):
		var ve *apperrors.ValidationError
		errors.As(err, &ve)
		msgs := make([]string, 0, len(ve.Errors))
		for _, fe := range ve.Errors {
			msgs = append(msgs, fe.Field+" "+fe.Message)
		}
		renderErrors(c, http.StatusUnprocessableEntity, msgs...)
	case apperrors.IsNotFound(err):
		renderErrors(c, http.StatusNotFound, "phone call not found")
	default:
		logger.FromGin(c).Error("webhook processing failed", "error", err)
		c.Status(http.StatusInternalServerError)
	}
}

func renderErrors(c *gin.Context, status int, msgs ...string) {
	c.XML(status, errorsDoc{Errors: msgs})
}

// jsonOnly reports whether the client will accept only JSON. The callback
// endpoint speaks XML exclusively.
func jsonOnly(accept string) bool {
	if accept == "" {
		return false
	}
	return strings.Contains(accept, "application/json") &&
		!strings.Contains(accept, "xml") &&
		!strings.Contains(accept, "*/*")
}

// requestURL rebuilds the absolute URL the provider signed. Proxy headers
// take precedence so signatures survive TLS termination.
func requestURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return scheme + "://" + host + r.URL.RequestURI()
}
