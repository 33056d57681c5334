package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"coinshop-coupons/internal/infra/api"
	"coinshop-coupons/internal/usecase"
)

// Server is the admin dashboard API: coupon maintenance, the purchase
// ledger, and manual issuance. It listens on its own port so the public
// redemption surface can be exposed without any of this.
type Server struct {
	couponUC   usecase.CouponUseCase
	purchaseUC usecase.PurchaseUseCase
	auth       *AuthManager
	log        *zerolog.Logger
}

func NewServer(
	couponUC usecase.CouponUseCase,
	purchaseUC usecase.PurchaseUseCase,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		couponUC:   couponUC,
		purchaseUC: purchaseUC,
		auth:       auth,
		log:        logger,
	}
}

// Router builds the admin route tree. Everything except login sits
// behind the session middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.sessionMiddleware)

			r.Get("/coupons", s.handleCouponList)
			r.Post("/coupons", s.handleCouponCreate)
			r.Post("/coupons/batch-delete", s.handleCouponBatchDelete)
			r.Get("/coupons/{code}", s.handleCouponGet)
			r.Put("/coupons/{code}", s.handleCouponUpdate)
			r.Delete("/coupons/{code}", s.handleCouponDelete)
			r.Post("/coupons/{code}/clone", s.handleCouponClone)

			r.Get("/purchases", s.handlePurchaseList)
			r.Post("/purchases", s.handlePurchaseRecord)
			r.Post("/purchases/{txnId}/issue", s.handlePurchaseIssue)
			r.Put("/purchases/{txnId}/redeemed", s.handlePurchaseSetRedeemed)
		})
	})

	return api.Chain(r, api.TraceID(), api.Recover(s.log), api.RequestLog(s.log), api.Timeout(15*time.Second))
}

// sessionMiddleware rejects requests without a valid admin session
// token, from either the cookie or a bearer header.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
