package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"coinshop-coupons/internal/domain"
	"coinshop-coupons/internal/infra/logging"
	"coinshop-coupons/internal/infra/metrics"
	"coinshop-coupons/internal/usecase"
)

// Server is the public redemption surface consumed by the client apps.
// It exposes exactly one business route; everything admin-facing lives
// on the separate web server.
type Server struct {
	redeemUC       usecase.RedeemUseCase
	limiter        Limiter
	limitPerMinute int
	log            *zerolog.Logger
}

func NewServer(redeemUC usecase.RedeemUseCase, limiter Limiter, limitPerMinute int, logger *zerolog.Logger) *Server {
	return &Server{redeemUC: redeemUC, limiter: limiter, limitPerMinute: limitPerMinute, log: logger}
}

// Router builds the public route tree with its middleware stack.
func (s *Server) Router(rateKeyFn func(addr string) string) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	redeem := Chain(
		http.HandlerFunc(s.handleRedeem),
		RateLimit(s.limiter, rateKeyFn, s.limitPerMinute, s.log),
	)
	r.Method(http.MethodGet, "/api/redeem", redeem)

	return Chain(r, TraceID(), Recover(s.log), RequestLog(s.log), Timeout(10*time.Second))
}

// redeemData is the success payload shape the apps parse.
type redeemData struct {
	Code           string `json:"code"`
	CoinAmount     int    `json:"coin_amount"`
	ShowAd         bool   `json:"show_ad"`
	Validity       string `json:"validity"`
	ValidityMillis int64  `json:"validity_millis"`
}

type redeemEnvelope struct {
	Success bool        `json:"success"`
	Data    *redeemData `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	if code == "" {
		writeRedeemError(w, http.StatusBadRequest, "Coupon code is required.")
		metrics.IncRedemption("missing_code")
		return
	}

	start := time.Now()
	ctx := logging.WithCode(r.Context(), code)
	res, err := s.redeemUC.Redeem(ctx, code, usecase.RedeemOptions{
		Package: q.Get("pkg"),
		Note:    q.Get("note"),
	})
	metrics.ObserveRedeemLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		status, msg, outcome := classifyRedeemError(err)
		if status == http.StatusInternalServerError {
			l := logging.With(ctx, s.log)
			l.Error().Err(err).Msg("redeem failed")
		}
		metrics.IncRedemption(outcome)
		writeRedeemError(w, status, msg)
		return
	}

	metrics.IncRedemption("success")
	writeJSON(w, http.StatusOK, redeemEnvelope{Success: true, Data: &redeemData{
		Code:           res.Code,
		CoinAmount:     res.CoinAmount,
		ShowAd:         res.ShowAd,
		Validity:       res.Validity,
		ValidityMillis: res.ValidityMillis,
	}})
}

// classifyRedeemError maps domain errors to the fixed status and
// message contract the installed clients already depend on.
func classifyRedeemError(err error) (status int, msg, outcome string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "Coupon code is required.", "missing_code"
	case errors.Is(err, domain.ErrCouponNotFound):
		return http.StatusNotFound, "Invalid coupon code.", "not_found"
	case errors.Is(err, domain.ErrPackageMismatch):
		return http.StatusForbidden, "This coupon is not valid for this application.", "package_mismatch"
	case errors.Is(err, domain.ErrCouponExpired):
		return http.StatusBadRequest, "This coupon has expired.", "expired"
	case errors.Is(err, domain.ErrAlreadyRedeemed):
		return http.StatusBadRequest, "This coupon has already been redeemed.", "already_redeemed"
	case errors.Is(err, domain.ErrLimitReached):
		return http.StatusBadRequest, "This coupon has reached its redemption limit.", "limit_reached"
	case errors.Is(err, domain.ErrInvalidCouponType):
		return http.StatusInternalServerError, "Invalid coupon type.", "invalid_type"
	default:
		return http.StatusInternalServerError, "An internal server error occurred.", "internal_error"
	}
}

func writeRedeemError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, redeemEnvelope{Success: false, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
