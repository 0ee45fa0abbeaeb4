package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/speedcolor/internal/auth"
	"github.com/victornm/speedcolor/internal/domain"
	"github.com/victornm/speedcolor/internal/errors"
	"github.com/victornm/speedcolor/internal/event"
	"github.com/victornm/speedcolor/internal/leaderboard"
	"github.com/victornm/speedcolor/internal/score"
	"github.com/victornm/speedcolor/internal/scoring"
	"github.com/victornm/speedcolor/internal/user"
)

const identityKey = "api.identity"

type Config struct {
	EventBus    *event.Bus
	Tokens      *auth.Tokens
	User        *user.Service
	Score       *score.Service
	Leaderboard *leaderboard.Service
	// Redis receives realtime notifications. Nil disables them.
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	tokens *auth.Tokens
	us     *user.Service
	ss     *score.Service
	ls     *leaderboard.Service

	redis  Redis
	prefix string
}

func New(c Config) *API {
	registerValidation()

	a := &API{
		tokens: c.Tokens,
		us:     c.User,
		ss:     c.Score,
		ls:     c.Leaderboard,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	if a.redis != nil {
		c.EventBus.Subscribe(domain.EventNameRecordCreated, func(ctx context.Context, e event.Event) error {
			return a.PublishRecordCreated(ctx, e.(domain.EventRecordCreated))
		})

		c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
			return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
		})
	}

	return a
}

// Register mounts every route on r.
func (a *API) Register(r gin.IRouter) {
	r.GET("/health", a.Health)

	authGroup := r.Group("/auth")
	authGroup.POST("/register", a.RegisterUser)
	authGroup.POST("/login", a.Login)
	authGroup.GET("/me", a.Authenticate, a.Me)

	records := r.Group("/records")
	records.GET("/me", a.Authenticate, a.GetSummary)
	records.POST("", a.Authenticate, a.CreateRecord)
	records.GET("/leaderboard", a.GetLeaderboard)
	records.GET("/stats", a.GetStats)
}

func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Authenticate rejects requests without a valid bearer token and stores the caller identity
// for the next handlers.
func (a *API) Authenticate(c *gin.Context) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok {
		abort(c, errors.Unauthenticated("Unauthorized"))
		return
	}

	id, err := a.tokens.Verify(token)
	if err != nil {
		abort(c, err)
		return
	}

	c.Set(identityKey, id)
	c.Next()
}

func identity(c *gin.Context) auth.Identity {
	id, _ := c.MustGet(identityKey).(auth.Identity)
	return id
}

func (a *API) RegisterUser(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, bindError(err))
		return
	}

	resp, err := a.us.Register(c.Request.Context(), user.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, toAuthResponse(resp))
}

func (a *API) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, bindError(err))
		return
	}

	resp, err := a.us.Login(c.Request.Context(), user.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toAuthResponse(resp))
}

func (a *API) Me(c *gin.Context) {
	u, err := a.us.Me(c.Request.Context(), identity(c))
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toUser(*u))
}

func (a *API) GetSummary(c *gin.Context) {
	s, err := a.ss.Summary(c.Request.Context(), identity(c).UserID)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toSummary(*s))
}

func (a *API) CreateRecord(c *gin.Context) {
	var req CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, bindError(err))
		return
	}

	r := score.CreateRecordRequest{
		UserID:       identity(c).UserID,
		Score:        *req.Score,
		ReactionTime: req.ReactionTime,
		Accuracy:     req.Accuracy,
	}
	if req.GameType != nil {
		r.GameType = *req.GameType
	}
	if req.Level != nil {
		r.Level = *req.Level
	}

	resp, err := a.ss.CreateRecord(c.Request.Context(), r)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateRecordResponse{
		Created:   toRecord(resp.Created),
		HighScore: resp.HighScore,
	})
}

// GetLeaderboard never fails on a bad limit, it falls back to the default instead.
func (a *API) GetLeaderboard(c *gin.Context) {
	limit := scoring.ClampLimit(c.Query("limit"), a.ls.DefaultLimit())

	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{Limit: limit})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toLeaderboard(*l))
}

func (a *API) GetStats(c *gin.Context) {
	s, err := a.ls.GetStats(c.Request.Context())
	if err != nil {
		abort(c, errors.New(errors.CodeInternal,
			errors.WithMessagef("Failed to fetch stats"),
			errors.WithCause(err),
		))
		return
	}

	c.JSON(http.StatusOK, toStats(*s))
}

// abort renders err as {"error": ...}. Causes of internal errors are logged, never sent.
func abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{"error": e.Body()})
}
