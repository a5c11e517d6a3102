package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/courier/internal/engine"
	"github.com/roach88/courier/internal/ledger"
	"github.com/roach88/courier/internal/store"
	"github.com/roach88/courier/internal/value"
)

// TransactionRequest is the body of POST /v1/transactions.
type TransactionRequest struct {
	Signer    string          `json:"signer" binding:"required"`
	Receiver  string          `json:"receiver" binding:"required"`
	Operation string          `json:"operation" binding:"required"`
	Args      json.RawMessage `json:"args"`
	Deposit   uint64          `json:"deposit"`
	Budget    uint64          `json:"budget"`
}

// TransactionResponse reports the final outcome of a transaction.
type TransactionResponse struct {
	Trace  string      `json:"trace"`
	Root   string      `json:"root"`
	Status string      `json:"status"`
	Value  value.Value `json:"value"`
	Error  string      `json:"error,omitempty"`
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"uptime":   s.started,
			"service":  "courier",
			"accounts": len(s.rt.Accounts()),
		})
	})
	s.router.GET("/metrics", gin.WrapH(s.recorder.Handler()))

	v1 := s.router.Group("/v1")
	v1.POST("/transactions", s.postTransaction)
	v1.GET("/accounts", s.listAccounts)
	v1.GET("/accounts/:id", s.getAccount)
	v1.GET("/traces/:token", s.getTrace)
}

func (s *Server) postTransaction(c *gin.Context) {
	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	args, err := value.ParseObject(req.Args)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "args: " + err.Error()})
		return
	}

	receipt, err := s.rt.Execute(c.Request.Context(), engine.Transaction{
		Signer:    ledger.AccountID(req.Signer),
		Receiver:  ledger.AccountID(req.Receiver),
		Operation: req.Operation,
		Args:      args,
		Deposit:   ledger.Balance(req.Deposit),
		Budget:    ledger.Budget(req.Budget),
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "code": engine.CodeOf(err)})
		return
	}

	c.JSON(http.StatusOK, TransactionResponse{
		Trace:  receipt.Trace,
		Root:   string(receipt.Root),
		Status: string(receipt.Outcome.Status),
		Value:  receipt.Outcome.Value,
		Error:  receipt.Outcome.Reason,
	})
}

func (s *Server) listAccounts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"accounts": s.rt.Accounts()})
}

func (s *Server) getAccount(c *gin.Context) {
	acct, ok := s.rt.Account(ledger.AccountID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	c.JSON(http.StatusOK, acct)
}

func (s *Server) getTrace(c *gin.Context) {
	token := c.Param("token")
	if entries, ok := s.rt.Trace(token); ok {
		c.JSON(http.StatusOK, gin.H{"trace": token, "legs": entries})
		return
	}
	if s.journal != nil {
		entries, err := s.journal.ReadTrace(c.Request.Context(), token)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"trace": token, "legs": entries})
			return
		case !errors.Is(err, store.ErrTraceNotFound):
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "trace not found"})
}

func statusFor(err error) int {
	switch engine.CodeOf(err) {
	case engine.ErrCodeUnknownAccount:
		return http.StatusNotFound
	case engine.ErrCodeInsufficientBalance, engine.ErrCodeInvalidTransaction:
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, engine.ErrStopped) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
