package demobank

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func NewHTTPHandler(svc Service, log *zerolog.Logger) http.Handler {
	hndlr := &httpHandler{
		Svc: svc,
		Log: log,
	}
	mux := chi.NewMux()
	mux.Use(RequestID)
	mux.NotFound(HTTPNotFound)
	mux.Route("/api", func(r chi.Router) {
		r.Route("/customers", func(rr chi.Router) {
			rr.Post("/", hndlr.CreateCustomer)
			rr.Route("/{custID:[0-9]+}", func(rrr chi.Router) {
				rrr.Get("/", hndlr.GetCustomer)
				rrr.Get("/accounts", hndlr.AccountsByCustomer)
				rrr.Put("/password", hndlr.UpdatePassword)
			})
		})
		r.Route("/accounts", func(rr chi.Router) {
			rr.Get("/", hndlr.ListAccounts)
			rr.Post("/", hndlr.CreateAccount)
			rr.Post("/transfer", hndlr.Transfer)
			rr.Get("/number/{number}", hndlr.GetAccountByNumber)
			rr.Route("/{acctID:[0-9]+}", func(rrr chi.Router) {
				rrr.Get("/", hndlr.GetAccount)
				rrr.Post("/deposit", hndlr.Deposit)
				rrr.Post("/withdraw", hndlr.Withdraw)
				rrr.Get("/transactions", hndlr.Transactions)
				rrr.Get("/statement", hndlr.Statement)
			})
		})
		r.Get("/transactions", hndlr.AllTransactions)
	})

	return mux
}

// RequestID tags every response with an id for log correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-Id")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", rid)
		next.ServeHTTP(w, r)
	})
}

type httpHandler struct {
	Svc Service
	Log *zerolog.Logger
}

func (h *httpHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerReq
	if !h.decodeBody(w, r, "createCustomer", &req) {
		return
	}
	cust, err := h.Svc.CreateCustomer(r.Context(), req)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, cust)
}

func (h *httpHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	custID, ok := h.parseID(w, r, "custID")
	if !ok {
		return
	}
	cust, err := h.Svc.GetCustomer(r.Context(), custID)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cust)
}

func (h *httpHandler) AccountsByCustomer(w http.ResponseWriter, r *http.Request) {
	custID, ok := h.parseID(w, r, "custID")
	if !ok {
		return
	}
	accts, err := h.Svc.AccountsByCustomer(r.Context(), custID)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, accts)
}

func (h *httpHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	custID, ok := h.parseID(w, r, "custID")
	if !ok {
		return
	}
	var req UpdatePasswordReq
	if !h.decodeBody(w, r, "updatePassword", &req) {
		return
	}
	if err := h.Svc.UpdatePassword(r.Context(), custID, req.Password); err != nil {
		WriteHTTPError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *httpHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accts, err := h.Svc.ListAccounts(r.Context())
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	if accts == nil {
		accts = []Account{}
	}
	h.writeJSON(w, http.StatusOK, accts)
}

func (h *httpHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountReq
	if !h.decodeBody(w, r, "createAccount", &req) {
		return
	}
	acct, err := h.Svc.CreateAccount(r.Context(), req)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, acct)
}

func (h *httpHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acctID, ok := h.parseID(w, r, "acctID")
	if !ok {
		return
	}
	acct, err := h.Svc.GetAccount(r.Context(), acctID)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, acct)
}

func (h *httpHandler) GetAccountByNumber(w http.ResponseWriter, r *http.Request) {
	acct, err := h.Svc.GetAccountByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, acct)
}

func (h *httpHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	acctID, ok := h.parseID(w, r, "acctID")
	if !ok {
		return
	}
	var req ChargeReq
	if !h.decodeBody(w, r, "deposit", &req) {
		return
	}
	req.AcctID = acctID
	acct, err := h.Svc.Deposit(r.Context(), req)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, acct)
}

func (h *httpHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	acctID, ok := h.parseID(w, r, "acctID")
	if !ok {
		return
	}
	var req ChargeReq
	if !h.decodeBody(w, r, "withdraw", &req) {
		return
	}
	req.AcctID = acctID
	acct, err := h.Svc.Withdraw(r.Context(), req)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, acct)
}

func (h *httpHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferReq
	if !h.decodeBody(w, r, "transfer", &req) {
		return
	}
	if err := h.Svc.Transfer(r.Context(), req); err != nil {
		WriteHTTPError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *httpHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	acctID, ok := h.parseID(w, r, "acctID")
	if !ok {
		return
	}
	entries, err := h.Svc.Transactions(r.Context(), acctID)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}

func (h *httpHandler) AllTransactions(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Svc.ListAllEntries(r.Context())
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}

func (h *httpHandler) Statement(w http.ResponseWriter, r *http.Request) {
	acctID, ok := h.parseID(w, r, "acctID")
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	if err := h.Svc.Statement(r.Context(), w, acctID); err != nil {
		WriteHTTPError(w, err)
		return
	}
}

func (h *httpHandler) parseID(w http.ResponseWriter, r *http.Request, param string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(chi.URLParam(r, param))
	if err != nil {
		h.Log.Err(err).Str("param", param).Msg("error parsing ID")
		WriteHTTPError(w, ErrBadRequest{Fields: map[string]string{param: "invalid format"}})
		return 0, false
	}
	return id, true
}

func (h *httpHandler) decodeBody(w http.ResponseWriter, r *http.Request, method string, v interface{}) bool {
	buf, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		h.Log.Err(err).Str("method", method).Msg("error reading HTTP request")
		WriteHTTPError(w, ErrInternalServer)
		return false
	}
	if err = json.Unmarshal(buf, v); err != nil {
		h.Log.Err(err).Str("method", method).Msg("error unmarshalling JSON")
		WriteHTTPError(w, ErrBadRequest{Fields: map[string]string{"request body": "malformed JSON"}})
		return false
	}
	return true
}

func (h *httpHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Err(err).Msg("error encoding response")
	}
}

func WriteHTTPError(w http.ResponseWriter, err error) {
	var ne error
	defer func() {
		if ne != nil {
			log.Error().
				Err(ne).
				Msg("error response encoding failed")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	var (
		badReq ErrBadRequest
		invAmt ErrInvalidAmount
		same   ErrSameAccountTransfer
		acctNF ErrAccountNotFound
		custNF ErrCustomerNotFound
		notAct ErrAccountNotActive
		insuf  ErrInsufficientFunds
		overd  ErrOverdraftExceeded
	)
	switch {
	case errors.As(err, &badReq):
		w.WriteHeader(http.StatusBadRequest)
		ne = json.NewEncoder(w).Encode(badReq)
	case errors.As(err, &invAmt), errors.As(err, &same):
		w.WriteHeader(http.StatusBadRequest)
		ne = encodeErrMessage(w, err)
	case errors.As(err, &acctNF), errors.As(err, &custNF):
		w.WriteHeader(http.StatusNotFound)
		ne = encodeErrMessage(w, err)
	case errors.As(err, &notAct), errors.As(err, &insuf), errors.As(err, &overd):
		w.WriteHeader(http.StatusConflict)
		ne = encodeErrMessage(w, err)
	default:
		w.WriteHeader(http.StatusInternalServerError)
		ne = json.NewEncoder(w).Encode(map[string]string{"message": "server error"})
	}
}

func encodeErrMessage(w http.ResponseWriter, err error) error {
	return json.NewEncoder(w).Encode(map[string]string{"message": err.Error()})
}

func HTTPNotFound(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]string{
		"path": r.URL.Path,
	}
	json.NewEncoder(w).Encode(resp)
}
