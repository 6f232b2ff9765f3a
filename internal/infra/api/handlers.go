package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"coupon-marketplace/internal/domain"
	"coupon-marketplace/internal/domain/model"
	"coupon-marketplace/internal/domain/ports/adapter"
	"coupon-marketplace/internal/domain/promotion"
	"coupon-marketplace/internal/infra/metrics"
	red "coupon-marketplace/internal/infra/redis"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 64 << 10

// decode reads a JSON body into dst and runs struct validation on it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Invalid("body", "is not valid JSON: "+err.Error())
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return domain.Invalid(toSnake(fe.Field()), "failed "+fe.Tag())
		}
		return domain.Invalid("body", err.Error())
	}
	return nil
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// principal returns the authenticated caller or answers 401 when the
// request reached the handler without one.
func (s *Server) principal(w http.ResponseWriter, r *http.Request) (adapter.Principal, bool) {
	p, err := s.identity.CurrentUser(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return adapter.Principal{}, false
	}
	return p, true
}

// ---- merchant ----

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}

	var req createTemplateRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	promo, err := promotion.Decode(promotion.Type(req.PromotionType), req.Settings)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	tpl, err := s.catalog.CreateTemplate(r.Context(), p.ID, model.TemplateSpec{
		CategoryID:    req.CategoryID,
		Name:          req.Name,
		Description:   req.Description,
		Promotion:     promo,
		PointsPrice:   req.PointsPrice,
		TotalQuantity: req.TotalQuantity,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateResponse(tpl, s.now()))
}

func (s *Server) handleMyTemplates(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	list, err := s.catalog.ListByMerchant(r.Context(), p.ID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	now := s.now()
	items := make([]templateResponse, 0, len(list))
	for _, t := range list {
		items = append(items, toTemplateResponse(t, now))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	tpl, err := s.catalog.Deactivate(r.Context(), chi.URLParam(r, "id"), p.ID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(tpl, s.now()))
}

// handleCheck is the read-only first phase. Lookups are throttled per
// merchant; a failing limiter lets the request through.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}

	var req checkRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if s.limiter != nil && s.opts.CheckLimit > 0 {
		ok, err := s.limiter.Allow(r.Context(), red.CheckKey(p.ID), s.opts.CheckLimit, s.opts.CheckWindow)
		switch {
		case err != nil:
			metrics.IncCheckThrottled("limiter_error")
			s.log.Warn().Err(err).Msg("check limiter unavailable, allowing request")
		case !ok:
			metrics.IncCheckThrottled("limited")
			w.Header().Set("Retry-After", strconv.Itoa(int(s.opts.CheckWindow.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate_limited", Message: "too many pass code checks"})
			return
		}
	}

	details, err := s.redemption.Check(r.Context(), req.PassCode, p.ID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailsResponse(details, false))
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	receipt, err := s.redemption.Redeem(r.Context(), chi.URLParam(r, "couponID"), p.ID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, writeOffResponse{
		CouponID:      receipt.CouponID,
		TemplateID:    receipt.TemplateID,
		Amount:        receipt.Amount,
		UsedAt:        receipt.UsedAt,
		TransactionID: receipt.TransactionID,
	})
}

// ---- player ----

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	c, err := s.issuance.Issue(r.Context(), chi.URLParam(r, "id"), p.ID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCouponResponse(c))
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	c, err := s.issuance.Purchase(r.Context(), chi.URLParam(r, "id"), p.ID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCouponResponse(c))
}

func (s *Server) handleMyCoupons(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	list, err := s.issuance.ListByPlayer(r.Context(), p.ID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	items := make([]couponDetailsResponse, 0, len(list))
	for _, d := range list {
		items = append(items, toDetailsResponse(d, true))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// ---- shared ----

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.catalog.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(tpl, s.now()))
}

// handleMyAccount opens the caller's account on first access.
func (s *Server) handleMyAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	acc, err := s.ledger.OpenAccount(r.Context(), p.ID, p.Role)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{ID: acc.ID, OwnerID: acc.OwnerID, Role: acc.Role, Balance: acc.Balance})
}

func (s *Server) handleMyTransactions(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, s.log, domain.Invalid("limit", "must be a positive integer"))
			return
		}
		limit = n
	}
	acc, err := s.ledger.AccountByOwner(r.Context(), p.ID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	entries, err := s.ledger.History(r.Context(), acc.ID, limit)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": toLedgerEntries(entries)})
}
