package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nao1215/paqueteria/internal/history"
	"github.com/nao1215/paqueteria/pkg/event"
	"github.com/nao1215/paqueteria/pkg/middleware"
)

// shutdownTimeout は停止時に処理中のリクエストを待つ最大時間。
const shutdownTimeout = 10 * time.Second

// maxHistoryLimit は通知履歴APIで指定できる最大件数。
const maxHistoryLimit = 200

// ServerConfig はHTTPサーバーの設定。
type ServerConfig struct {
	// Port はサーバーのリッスンポート。
	Port string
	// JWTSecret は通知履歴APIのJWT検証に使うシークレット。
	JWTSecret string
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
	// HistoryLimit は通知履歴APIのデフォルト取得件数。
	HistoryLimit int
}

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// config はサーバー設定。
	config ServerConfig
	// pipeline は通知処理本体。
	pipeline *Pipeline
	// history は通知履歴の読み出し元。
	history history.Lister
	// logger は構造化ロガー。
	logger *zap.Logger
}

// NewServer は新しい通知サーバーを生成し、ルーティングを設定する。
func NewServer(cfg ServerConfig, pipeline *Pipeline, lister history.Lister, logger *zap.Logger) *Server {
	if cfg.HistoryLimit < 1 {
		cfg.HistoryLimit = 50
	}

	router := gin.New()
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	s := &Server{
		router:   router,
		config:   cfg,
		pipeline: pipeline,
		history:  lister,
		logger:   logger,
	}
	s.setupRoutes()
	return s
}

// Handler はルーティング済みのHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされたら処理中のリクエストを待って停止する。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("通知サービスを起動します", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("通知サービスを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	return nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api/notificaciones")
	{
		// 配達員が荷物を引き取った
		api.POST("/paquete-tomado", s.handleEvent(
			event.ActionPickedUp, s.pipeline.NotifyPackagePickedUp,
			"Notificación de paquete tomado enviada",
		))
		// 新しい荷物が登録された
		api.POST("/nuevo-paquete", s.handleEvent(
			event.ActionCreated, s.pipeline.NotifyNewPackage,
			"Notificaciones de nuevo paquete enviadas a repartidores",
		))
		// 荷物が配達された
		api.POST("/paquete-entregado", s.handleEvent(
			event.ActionDelivered, s.pipeline.NotifyPackageDelivered,
			"Notificación de paquete entregado enviada",
		))

		api.GET("/health", s.handleHealth())

		// 通知履歴（本人のみ）
		api.GET("/historial", middleware.JWTAuth(s.config.JWTSecret), s.handleHistory())
	}

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// notifyFunc はPipelineの通知操作。
type notifyFunc func(ctx context.Context, ev *event.PackageEvent) error

// handleEvent は荷物イベントをPipelineに渡し、結果をレスポンスに変換するハンドラ。
// アクションはエンドポイントで決まり、ボディの accion は上書きする。
func (s *Server) handleEvent(action event.Action, notify notifyFunc, successMessage string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var ev event.PackageEvent
		if err := c.ShouldBindJSON(&ev); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"mensaje": fmt.Sprintf("Solicitud inválida: %v", err),
			})
			return
		}
		if ev.Action != "" {
			if got, err := event.ParseAction(string(ev.Action)); err != nil || got != action {
				s.logger.Warn("accion をエンドポイントのアクションで上書きします",
					zap.String("request_id", middleware.GetRequestID(c)),
					zap.String("accion", string(ev.Action)),
					zap.String("action", string(action)),
				)
			}
		}
		ev.Action = action

		err := notify(c.Request.Context(), &ev)
		if err == nil {
			c.JSON(http.StatusOK, newResponse(true, successMessage, ev.PackageID))
			return
		}

		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, newResponse(false, notFound.Error(), ""))
			return
		}
		c.JSON(http.StatusInternalServerError, newResponse(false, "Error interno: "+err.Error(), ""))
	}
}

// newResponse は通知APIの共通レスポンスを生成する。paqueteIdは空なら含めない。
func newResponse(success bool, mensaje, packageID string) gin.H {
	body := gin.H{
		"success":   success,
		"mensaje":   mensaje,
		"timestamp": time.Now().UnixMilli(),
	}
	if packageID != "" {
		body["paqueteId"] = packageID
	}
	return body
}

// handleHealth はサービスの稼働状態を返すハンドラ。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "OK",
			"service":   "Notificaciones FCM",
			"timestamp": time.Now().UnixMilli(),
		})
	}
}

// handleHistory は認証済みユーザーの通知履歴を新しい順に返すハンドラ。
func (s *Server) handleHistory() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "mensaje": "Usuario no autenticado"})
			return
		}

		limit := s.config.HistoryLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "mensaje": "limit inválido"})
				return
			}
			limit = min(n, maxHistoryLimit)
		}

		entries, err := s.history.ListNotifications(c.Request.Context(), userID, limit)
		if err != nil {
			s.logger.Error("通知履歴の取得に失敗", zap.String("user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "mensaje": "Error interno: " + err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"notificaciones": entries,
		})
	}
}
