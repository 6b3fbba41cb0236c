package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/couchcryptid/capyquest-claim/internal/claim"
	"github.com/couchcryptid/capyquest-claim/internal/domain"
)

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, formatValidationError(err))
		return false
	}
	return true
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min", "max", "gte", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be %s %s", field, e.Tag(), e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", field, e.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// --- location ---

type locationResponse struct {
	OK    bool                  `json:"ok"`
	State domain.LocationState  `json:"state"`
	Error *domain.LocationError `json:"error,omitempty"`
}

func (s *Server) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.sessionFor(r)
	writeJSON(w, http.StatusOK, sess.Location.State())
}

func (s *Server) handleRequestLocation(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.sessionFor(r)
	res := sess.Location.RequestLocation(r.Context())
	writeJSON(w, http.StatusOK, locationResponse{OK: res.OK(), State: sess.Location.State(), Error: res.Err})
}

func (s *Server) handleClearLocation(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.sessionFor(r)
	sess.Location.ClearLocation()
	w.WriteHeader(http.StatusNoContent)
}

type fixRequest struct {
	Lat      *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng      *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
	Accuracy float64  `json:"accuracy" validate:"gte=0"`
}

func (s *Server) handlePushFix(w http.ResponseWriter, r *http.Request) {
	var req fixRequest
	if !s.decode(w, r, &req) {
		return
	}
	sess, _ := s.sessionFor(r)
	platform, ok := sess.Reported()
	if !ok {
		writeError(w, http.StatusConflict, "this session does not accept device fixes")
		return
	}
	platform.Push(domain.Position{
		Coordinate: domain.Coordinate{Lat: *req.Lat, Lng: *req.Lng},
		Accuracy:   req.Accuracy,
		Timestamp:  time.Now(),
	})
	w.WriteHeader(http.StatusAccepted)
}

type fixErrorRequest struct {
	Code    int    `json:"code" validate:"oneof=0 1 2 3"`
	Message string `json:"message" validate:"max=200"`
}

func (s *Server) handlePushFixError(w http.ResponseWriter, r *http.Request) {
	var req fixErrorRequest
	if !s.decode(w, r, &req) {
		return
	}
	sess, _ := s.sessionFor(r)
	platform, ok := sess.Reported()
	if !ok {
		writeError(w, http.StatusConflict, "this session does not accept device fixes")
		return
	}
	platform.PushError(domain.PositionErrorCode(req.Code), req.Message)
	w.WriteHeader(http.StatusAccepted)
}

// --- targets ---

type targetView struct {
	domain.ClaimTarget
	RarityName  string             `json:"rarity_name"`
	Eligibility domain.Eligibility `json:"eligibility"`
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := s.deps.Targets.Targets(r.Context())
	if err != nil {
		s.logger.Error("list targets", zap.Error(err))
		writeError(w, http.StatusBadGateway, "target catalog unavailable")
		return
	}
	sess, _ := s.sessionFor(r)
	current := sess.Location.Current()

	views := make([]targetView, 0, len(targets))
	for _, t := range targets {
		views = append(views, targetView{
			ClaimTarget: t,
			RarityName:  t.Rarity.Name(),
			Eligibility: domain.EvaluateEligibility(current, t.Location, s.deps.ThresholdMeters),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"targets": views})
}

// --- claims ---

type claimRequest struct {
	TokenID string `json:"tokenId" validate:"required,number"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !s.decode(w, r, &req) {
		return
	}
	sess, p := s.sessionFor(r)
	res := s.deps.Claims.Claim(r.Context(), claim.ClaimRequest{
		TokenID:  req.TokenID,
		Address:  p.Address,
		Location: sess.Location,
	})
	writeJSON(w, resultStatus(res), res)
}

func resultStatus(res domain.ClaimResult) int {
	switch {
	case res.Success:
		return http.StatusOK
	case res.Error != nil && res.Error.Kind == domain.KindInProgress:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

// --- wallet ---

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	_, p := s.sessionFor(r)
	writeJSON(w, http.StatusOK, s.deps.Wallet.State(p.Address))
}

func (s *Server) handleRefreshWallet(w http.ResponseWriter, r *http.Request) {
	_, p := s.sessionFor(r)
	state, err := s.deps.Wallet.Refresh(r.Context(), p.Address)
	if err != nil {
		s.logger.Warn("wallet refresh", zap.Error(err))
		writeError(w, http.StatusBadGateway, "could not read balance")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type purchaseRequest struct {
	Amount string `json:"amount" validate:"required,numeric"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !s.decode(w, r, &req) {
		return
	}
	_, p := s.sessionFor(r)
	res := s.deps.Claims.Purchase(r.Context(), claim.PurchaseRequest{Address: p.Address, Amount: req.Amount})
	writeJSON(w, resultStatus(res), res)
}

func (s *Server) handleWatchAsset(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Wallet.WatchAsset(r.Context()); err != nil {
		if errors.Is(err, domain.ErrUserRejected) {
			writeError(w, http.StatusConflict, "the wallet declined to track the token")
			return
		}
		s.logger.Warn("watch asset", zap.Error(err))
		writeError(w, http.StatusBadGateway, "wallet unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEnsureNetwork(w http.ResponseWriter, r *http.Request) {
	network := s.deps.Guard.Network()
	ok := s.deps.Guard.EnsureNetwork(r.Context(), network.ChainID)
	status := http.StatusOK
	if !ok {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]any{"ok": ok, "chain_id": network.ChainID, "chain_name": network.Name})
}
