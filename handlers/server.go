package api_handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/atomlink/stellar-marketplace-go/config"
	"github.com/atomlink/stellar-marketplace-go/contracts"
	"github.com/atomlink/stellar-marketplace-go/models"
	"github.com/atomlink/stellar-marketplace-go/pricing"
	"github.com/atomlink/stellar-marketplace-go/purchase"
	"github.com/atomlink/stellar-marketplace-go/recorder"
	"github.com/atomlink/stellar-marketplace-go/utils"
	"github.com/atomlink/stellar-marketplace-go/wallet"
)

// Server is the JSON surface the web UI drives the orchestration through.
type Server struct {
	Wallet   *wallet.SessionManager
	Resolver *contracts.Resolver
	Pricing  *pricing.Service
	Flow     *purchase.Flow
	Catalog  *recorder.Client
	Journal  *utils.IntentJournal
	Log      zerolog.Logger
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/wallet/providers", s.listProviders)
	r.Get("/wallet/session", s.getSession)
	r.Post("/wallet/connect", s.connect)
	r.Post("/wallet/disconnect", s.disconnect)
	r.Get("/listings/{id}/price", s.listingPrice)
	r.Post("/purchases", s.createPurchase)
	r.Get("/purchases/{id}", s.getPurchase)
	return r
}

func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.Wallet.ListAvailableProviders(r.Context()))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.Wallet.Session())
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProviderID string `json:"provider_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProviderID == "" {
		writeError(w, http.StatusBadRequest, "provider_id is required")
		return
	}

	session, err := s.Wallet.Connect(r.Context(), body.ProviderID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if session == nil {
		// user closed the selector: not an error, the UI shows install
		// instructions or simply returns to idle
		writeData(w, http.StatusOK, nil)
		return
	}
	writeData(w, http.StatusOK, session)
}

func (s *Server) disconnect(w http.ResponseWriter, r *http.Request) {
	s.Wallet.Disconnect(r.Context())
	writeData(w, http.StatusOK, nil)
}

func (s *Server) listingPrice(w http.ResponseWriter, r *http.Request) {
	listingID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad listing id")
		return
	}

	listing, err := s.Catalog.GetListing(r.Context(), listingID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	ref, err := s.Resolver.Resolve(listing, config.RoleFungibleToken)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	cached, err := utils.DecimalToStroops(listing.PriceXLM)
	if err != nil {
		cached = 0
	}

	facts := s.Pricing.Reconcile(r.Context(), ref, listing.TokenID, cached)
	writeData(w, http.StatusOK, facts)
}

func (s *Server) createPurchase(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ListingID int64 `json:"listing_id"`
		Amount    int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body")
		return
	}

	listing, err := s.Catalog.GetListing(r.Context(), body.ListingID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	ref, err := s.Resolver.Resolve(listing, config.RoleFungibleToken)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	cached, err := utils.DecimalToStroops(listing.PriceXLM)
	if err != nil {
		cached = 0
	}
	facts := s.Pricing.Reconcile(r.Context(), ref, listing.TokenID, cached)

	intent, err := s.Flow.Execute(r.Context(), purchase.Request{
		Listing:   listing,
		Contract:  ref,
		Amount:    body.Amount,
		UnitPrice: facts.ResolvedPrice,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, intent)
}

func (s *Server) getPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad intent id")
		return
	}
	if current := s.Flow.Current(); current != nil && current.ID == id {
		writeData(w, http.StatusOK, current)
		return
	}
	if s.Journal == nil {
		writeError(w, http.StatusNotFound, "intent not found")
		return
	}
	intent, err := s.Journal.GetIntent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "intent not found")
		return
	}
	writeData(w, http.StatusOK, intent)
}

// writeDomainError maps the error taxonomy to status codes so the UI can
// tell "you must fix this input" from "something failed".
func writeDomainError(w http.ResponseWriter, err error) {
	var validationErr *models.ValidationError
	var configErr *models.ConfigurationError
	var simErr *models.SimulationError
	var submitErr *models.SubmissionError

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &configErr):
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.As(err, &simErr):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &submitErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.APIEnvelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.APIEnvelope{Success: false, Error: message})
}
