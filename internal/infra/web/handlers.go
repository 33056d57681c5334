package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"coinshop-coupons/internal/domain"
	"coinshop-coupons/internal/domain/model"
	"coinshop-coupons/internal/domain/ports/repository"
	"coinshop-coupons/internal/infra/metrics"
	"coinshop-coupons/internal/usecase"
)

// ===== DTOs =====

type couponDTO struct {
	Code        string  `json:"code"`
	Coins       int     `json:"coins"`
	Type        string  `json:"type"`
	RedeemLimit *int    `json:"redeem_limit"`
	RedeemCount int     `json:"redeem_count"`
	Validity    int64   `json:"validity"`
	ShowAds     bool    `json:"show_ads"`
	Pkg         string  `json:"pkg"`
	Note        *string `json:"note"`
	Created     int64   `json:"created"`
}

func toCouponDTO(c *model.Coupon) couponDTO {
	return couponDTO{
		Code:        c.Code,
		Coins:       c.Coins,
		Type:        string(c.Type),
		RedeemLimit: c.RedeemLimit,
		RedeemCount: c.RedeemCount,
		Validity:    c.Validity,
		ShowAds:     c.ShowAds,
		Pkg:         c.Pkg,
		Note:        c.Note,
		Created:     c.Created,
	}
}

type purchaseDTO struct {
	ID             string  `json:"id"`
	TxnID          string  `json:"txn_id"`
	Amount         int64   `json:"amount"`
	IsRedeemed     bool    `json:"is_redeemed"`
	Sender         *string `json:"sender"`
	MessageSource  string  `json:"message_source"`
	OriginalSMS    string  `json:"original_sms"`
	ReceiverDevice string  `json:"receiver_device"`
	ReceiverEmail  string  `json:"receiver_email"`
	ReceivedTime   int64   `json:"received_time"`
	SentTime       int64   `json:"sent_time"`
}

func toPurchaseDTO(p *model.Purchase) purchaseDTO {
	return purchaseDTO{
		ID:             p.ID,
		TxnID:          p.TxnID,
		Amount:         p.Amount,
		IsRedeemed:     p.IsRedeemed,
		Sender:         p.Sender,
		MessageSource:  p.MessageSource,
		OriginalSMS:    p.OriginalSMS,
		ReceiverDevice: p.ReceiverDevice,
		ReceiverEmail:  p.ReceiverEmail,
		ReceivedTime:   p.ReceivedTime,
		SentTime:       p.SentTime,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ===== Auth =====

type loginRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !s.auth.CheckPassword(req.Password) {
		s.log.Warn().Msg("admin login rejected")
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// ===== Coupons =====

type couponCreateRequest struct {
	Code        string  `json:"code"`
	Coins       int     `json:"coins"`
	Type        string  `json:"type"`
	RedeemLimit *int    `json:"redeem_limit"`
	Validity    int64   `json:"validity"`
	ShowAds     bool    `json:"show_ads"`
	Pkg         string  `json:"pkg"`
	Note        *string `json:"note"`
}

func (s *Server) handleCouponCreate(w http.ResponseWriter, r *http.Request) {
	var req couponCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	typ, err := model.ParseCouponType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown coupon type")
		return
	}
	c, err := s.couponUC.Create(r.Context(), usecase.CouponInput{
		Code:        req.Code,
		Coins:       req.Coins,
		Type:        typ,
		RedeemLimit: req.RedeemLimit,
		Validity:    req.Validity,
		ShowAds:     req.ShowAds,
		Pkg:         req.Pkg,
		Note:        req.Note,
	})
	if err != nil {
		writeCouponError(w, err)
		return
	}
	metrics.IncIssued("admin")
	writeJSON(w, http.StatusCreated, toCouponDTO(c))
}

func (s *Server) handleCouponList(w http.ResponseWriter, r *http.Request) {
	coupons, err := s.couponUC.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list coupons")
		return
	}
	out := make([]couponDTO, 0, len(coupons))
	for _, c := range coupons {
		out = append(out, toCouponDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCouponGet(w http.ResponseWriter, r *http.Request) {
	c, err := s.couponUC.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeCouponError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCouponDTO(c))
}

type couponUpdateRequest struct {
	Coins       *int    `json:"coins"`
	Type        *string `json:"type"`
	RedeemLimit *int    `json:"redeem_limit"`
	ClearLimit  bool    `json:"clear_limit"`
	Validity    *int64  `json:"validity"`
	ShowAds     *bool   `json:"show_ads"`
	Pkg         *string `json:"pkg"`
	Note        *string `json:"note"`
	ClearNote   bool    `json:"clear_note"`
}

func (s *Server) handleCouponUpdate(w http.ResponseWriter, r *http.Request) {
	var req couponUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	patch := repository.CouponPatch{
		Coins:       req.Coins,
		RedeemLimit: req.RedeemLimit,
		ClearLimit:  req.ClearLimit,
		Validity:    req.Validity,
		ShowAds:     req.ShowAds,
		Pkg:         req.Pkg,
		Note:        req.Note,
		ClearNote:   req.ClearNote,
	}
	if req.Type != nil {
		typ, err := model.ParseCouponType(*req.Type)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Unknown coupon type")
			return
		}
		patch.Type = &typ
	}
	if err := s.couponUC.Update(r.Context(), chi.URLParam(r, "code"), patch); err != nil {
		writeCouponError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCouponDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.couponUC.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete coupon")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cloneRequest struct {
	NewCode string `json:"new_code"`
}

func (s *Server) handleCouponClone(w http.ResponseWriter, r *http.Request) {
	var req cloneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	c, err := s.couponUC.Clone(r.Context(), chi.URLParam(r, "code"), req.NewCode)
	if err != nil {
		writeCouponError(w, err)
		return
	}
	metrics.IncIssued("clone")
	writeJSON(w, http.StatusCreated, toCouponDTO(c))
}

type batchDeleteRequest struct {
	Codes []string `json:"codes"`
}

func (s *Server) handleCouponBatchDelete(w http.ResponseWriter, r *http.Request) {
	var req batchDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.couponUC.DeleteBatch(r.Context(), req.Codes); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete coupons")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeCouponError maps usecase errors from the coupon maintenance
// paths onto admin API statuses.
func writeCouponError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrCouponNotFound), errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Coupon not found")
	case errors.Is(err, domain.ErrDuplicateCode):
		writeError(w, http.StatusConflict, "Coupon code already exists")
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidCouponType):
		writeError(w, http.StatusBadRequest, "Invalid coupon data")
	default:
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

// ===== Purchases =====

type purchaseCreateRequest struct {
	TxnID          string  `json:"txn_id"`
	Amount         int64   `json:"amount"`
	Sender         *string `json:"sender"`
	MessageSource  string  `json:"message_source"`
	OriginalSMS    string  `json:"original_sms"`
	ReceiverDevice string  `json:"receiver_device"`
	ReceiverEmail  string  `json:"receiver_email"`
	ReceivedTime   int64   `json:"received_time"`
	SentTime       int64   `json:"sent_time"`
}

func (s *Server) handlePurchaseRecord(w http.ResponseWriter, r *http.Request) {
	var req purchaseCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	p, err := s.purchaseUC.Record(r.Context(), usecase.PurchaseInput{
		TxnID:          req.TxnID,
		Amount:         req.Amount,
		Sender:         req.Sender,
		MessageSource:  req.MessageSource,
		OriginalSMS:    req.OriginalSMS,
		ReceiverDevice: req.ReceiverDevice,
		ReceiverEmail:  req.ReceiverEmail,
		ReceivedTime:   req.ReceivedTime,
		SentTime:       req.SentTime,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, "Invalid purchase data")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to record purchase")
		return
	}
	writeJSON(w, http.StatusCreated, toPurchaseDTO(p))
}

func (s *Server) handlePurchaseList(w http.ResponseWriter, r *http.Request) {
	purchases, err := s.purchaseUC.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list purchases")
		return
	}
	out := make([]purchaseDTO, 0, len(purchases))
	for _, p := range purchases {
		out = append(out, toPurchaseDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

type issueRequest struct {
	Type             string `json:"type"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	RegularPrice     int64  `json:"regular_price"`
	DiscountedPrice  int64  `json:"discounted_price"`
	CoinAmount       int    `json:"coin_amount"`
	SubscriptionDays int    `json:"subscription_days"`
}

func (s *Server) handlePurchaseIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	product := &model.Product{
		Type:             model.ProductType(req.Type),
		Name:             req.Name,
		Description:      req.Description,
		RegularPrice:     req.RegularPrice,
		DiscountedPrice:  req.DiscountedPrice,
		CoinAmount:       req.CoinAmount,
		SubscriptionDays: req.SubscriptionDays,
	}
	c, err := s.couponUC.CreateFromPurchase(r.Context(), chi.URLParam(r, "txnId"), product)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPurchaseNotFound):
			writeError(w, http.StatusNotFound, "Purchase not found")
		case errors.Is(err, domain.ErrPurchaseAlreadyRedeemed):
			writeError(w, http.StatusConflict, "Purchase already redeemed")
		case errors.Is(err, domain.ErrDuplicateCode):
			writeError(w, http.StatusConflict, "A coupon for this transaction already exists")
		case errors.Is(err, domain.ErrAmountMismatch):
			writeError(w, http.StatusConflict, "Paid amount does not cover the product price")
		case errors.Is(err, domain.ErrIssuanceLocked):
			writeError(w, http.StatusConflict, "Issuance for this transaction is already in progress")
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, "Invalid issuance request")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to issue coupon")
		}
		return
	}
	metrics.IncIssued("purchase")
	writeJSON(w, http.StatusCreated, toCouponDTO(c))
}

type setRedeemedRequest struct {
	Redeemed bool `json:"redeemed"`
}

func (s *Server) handlePurchaseSetRedeemed(w http.ResponseWriter, r *http.Request) {
	var req setRedeemedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.purchaseUC.SetRedeemed(r.Context(), chi.URLParam(r, "txnId"), req.Redeemed); err != nil {
		if errors.Is(err, domain.ErrPurchaseNotFound) {
			writeError(w, http.StatusNotFound, "Purchase not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update purchase")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
