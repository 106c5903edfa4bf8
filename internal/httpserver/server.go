// Package httpserver exposes the reservation service over HTTP.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harborview/booking/pkg/booking"
)

// Config holds the HTTP listener settings.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Server is the HTTP facade over the reservation service.
type Server struct {
	cfg     Config
	service *booking.Service
	logger  *zap.Logger
	metrics http.Handler
	router  *gin.Engine
}

// New builds the router. A nil metrics handler disables the /metrics
// endpoint.
func New(cfg Config, service *booking.Service, logger *zap.Logger, metrics http.Handler) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	server := &Server{cfg: cfg, service: service, logger: logger, metrics: metrics}
	server.router = server.setupRouter()
	return server
}

// Router exposes the handler for tests and custom servers.
func (server *Server) Router() http.Handler {
	return server.router
}

// Run serves until the context ends, then shuts down gracefully.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    server.cfg.ListenAddr,
		Handler: server.router,
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("http listening", zap.String("addr", server.cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (server *Server) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     server.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if server.metrics != nil {
		router.GET("/metrics", gin.WrapH(server.metrics))
	}

	api := router.Group("/api")
	api.POST("/reservations", server.handleCreate)
	api.GET("/reservations/:id", server.handleReservation)
	api.PUT("/reservations/:id", server.handleUpdate)
	api.POST("/reservations/:id/check-in", server.handleCheckIn)
	api.POST("/reservations/:id/check-out", server.handleCheckOut)
	api.POST("/reservations/:id/cancel", server.handleCancel)
	api.POST("/reservations/:id/refund", server.handleRefund)
	api.GET("/reservations/:id/transaction", server.handleTransaction)
	api.GET("/users/:id/reservations", server.handleUserReservations)
	api.GET("/users/:id/transactions", server.handleUserTransactions)

	return router
}

type createRequest struct {
	UserID           string  `json:"user_id"`
	RoomID           string  `json:"room_id"`
	CheckIn          string  `json:"check_in"`
	CheckOut         string  `json:"check_out"`
	NumGuests        int     `json:"num_guests"`
	TotalPrice       float64 `json:"total_price"`
	PaymentMethodRef string  `json:"payment_method"`
}

type updateRequest struct {
	CheckIn    string  `json:"check_in"`
	CheckOut   string  `json:"check_out"`
	NumGuests  int     `json:"num_guests"`
	TotalPrice float64 `json:"total_price"`
}

func (server *Server) handleCreate(ctx *gin.Context) {
	var request createRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	checkIn, err := booking.ParseDate(request.CheckIn)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_date", "check_in must be YYYY-MM-DD"))
		return
	}
	checkOut, err := booking.ParseDate(request.CheckOut)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_date", "check_out must be YYYY-MM-DD"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
	defer cancel()
	reservation, err := server.service.Create(requestCtx, booking.CreateInput{
		UserID:           request.UserID,
		RoomID:           request.RoomID,
		CheckIn:          checkIn,
		CheckOut:         checkOut,
		NumGuests:        request.NumGuests,
		TotalPrice:       request.TotalPrice,
		PaymentMethodRef: request.PaymentMethodRef,
	})
	if err != nil {
		server.respondError(ctx, "create reservation", err)
		return
	}
	ctx.JSON(http.StatusCreated, reservationResponse(reservation))
}

func (server *Server) handleUpdate(ctx *gin.Context) {
	var request updateRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	checkIn, err := booking.ParseDate(request.CheckIn)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_date", "check_in must be YYYY-MM-DD"))
		return
	}
	checkOut, err := booking.ParseDate(request.CheckOut)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_date", "check_out must be YYYY-MM-DD"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
	defer cancel()
	reservation, err := server.service.Update(requestCtx, ctx.Param("id"), booking.UpdateInput{
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		NumGuests:  request.NumGuests,
		TotalPrice: request.TotalPrice,
	})
	if err != nil {
		server.respondError(ctx, "update reservation", err)
		return
	}
	ctx.JSON(http.StatusOK, reservationResponse(reservation))
}

func (server *Server) handleCheckIn(ctx *gin.Context) {
	server.lifecycle(ctx, "check in", server.service.CheckIn)
}

func (server *Server) handleCheckOut(ctx *gin.Context) {
	server.lifecycle(ctx, "check out", server.service.CheckOut)
}

func (server *Server) handleCancel(ctx *gin.Context) {
	server.lifecycle(ctx, "cancel reservation", server.service.Cancel)
}

func (server *Server) lifecycle(ctx *gin.Context, operation string, call func(context.Context, string) (booking.Reservation, error)) {
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
	defer cancel()
	reservation, err := call(requestCtx, ctx.Param("id"))
	if err != nil {
		server.respondError(ctx, operation, err)
		return
	}
	ctx.JSON(http.StatusOK, reservationResponse(reservation))
}

func (server *Server) handleRefund(ctx *gin.Context) {
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
	defer cancel()
	if err := server.service.Refund(requestCtx, ctx.Param("id")); err != nil {
		server.respondError(ctx, "refund reservation", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "refunded"})
}

func (server *Server) handleReservation(ctx *gin.Context) {
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
	defer cancel()
	reservation, err := server.service.Reservation(requestCtx, ctx.Param("id"))
	if err != nil {
		server.respondError(ctx, "load reservation", err)
		return
	}
	ctx.JSON(http.StatusOK, reservationResponse(reservation))
}

func (server *Server) handleTransaction(ctx *gin.Context) {
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
	defer cancel()
	transaction, err := server.service.TransactionByReservation(requestCtx, ctx.Param("id"))
	if err != nil {
		server.respondError(ctx, "load transaction", err)
		return
	}
	ctx.JSON(http.StatusOK, transactionResponse(transaction))
}

func (server *Server) handleUserReservations(ctx *gin.Context) {
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
	defer cancel()
	reservations, err := server.service.ReservationsByUser(requestCtx, ctx.Param("id"))
	if err != nil {
		server.respondError(ctx, "list reservations", err)
		return
	}
	payload := make([]gin.H, 0, len(reservations))
	for _, reservation := range reservations {
		payload = append(payload, reservationResponse(reservation))
	}
	ctx.JSON(http.StatusOK, gin.H{"reservations": payload})
}

func (server *Server) handleUserTransactions(ctx *gin.Context) {
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
	defer cancel()
	transactions, err := server.service.TransactionsByUser(requestCtx, ctx.Param("id"))
	if err != nil {
		server.respondError(ctx, "list transactions", err)
		return
	}
	payload := make([]gin.H, 0, len(transactions))
	for _, transaction := range transactions {
		payload = append(payload, transactionResponse(transaction))
	}
	ctx.JSON(http.StatusOK, gin.H{"transactions": payload})
}

func (server *Server) respondError(ctx *gin.Context, operation string, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		server.logger.Error(operation+" failed", zap.Error(err))
	} else {
		server.logger.Info(operation+" rejected", zap.Error(err))
	}
	ctx.JSON(status, errorResponse(code, err.Error()))
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, booking.ErrRoomNotFound),
		errors.Is(err, booking.ErrReservationNotFound),
		errors.Is(err, booking.ErrTransactionNotFound),
		errors.Is(err, booking.ErrUserNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, booking.ErrRoomUnavailable):
		return http.StatusConflict, "room_unavailable"
	case errors.Is(err, booking.ErrInvalidStateTransition):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, booking.ErrVersionConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, booking.ErrInvalidDate),
		errors.Is(err, booking.ErrInvalidDateRange),
		errors.Is(err, booking.ErrInvalidGuestCount),
		errors.Is(err, booking.ErrInvalidPrice),
		errors.Is(err, booking.ErrInvalidAmountCents),
		errors.Is(err, booking.ErrInvalidCurrency):
		return http.StatusBadRequest, "invalid_request"
	case booking.IsGatewayError(err):
		return http.StatusBadGateway, "payment_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func errorResponse(code string, message string) gin.H {
	return gin.H{"error": code, "message": message}
}

func reservationResponse(reservation booking.Reservation) gin.H {
	return gin.H{
		"id":             reservation.ID,
		"user_id":        reservation.UserID,
		"room_id":        reservation.RoomID,
		"guest_name":     reservation.GuestName,
		"room_number":    reservation.RoomNumber,
		"check_in":       reservation.CheckIn.String(),
		"check_out":      reservation.CheckOut.String(),
		"num_guests":     reservation.NumGuests,
		"total_price":    reservation.TotalPrice,
		"status":         reservation.Status.String(),
		"payment_intent": reservation.PaymentIntentRef,
	}
}

func transactionResponse(transaction booking.Transaction) gin.H {
	return gin.H{
		"id":             transaction.ID,
		"payment_intent": transaction.PaymentIntentRef,
		"reservation_id": transaction.ReservationID,
		"user_id":        transaction.UserID,
		"status":         transaction.Status.String(),
		"amount_cents":   transaction.AmountCents.Int64(),
		"currency":       transaction.Currency,
		"last4":          transaction.Last4,
		"authorized_at":  transaction.AuthorizedAtUnixUTC,
		"captured_at":    transaction.CapturedAtUnixUTC,
		"cancelled_at":   transaction.CancelledAtUnixUTC,
	}
}
