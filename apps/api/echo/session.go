package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/techjoejoe/leadergrid/core/checkin"
	"github.com/techjoejoe/leadergrid/core/session"
)

type sessionApi struct {
	registry   *session.Registry
	checkinSvc *checkin.Service
	codec      *checkin.Codec
	validate   *validator.Validate
}

func registerSessionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	registry *session.Registry,
	checkinSvc *checkin.Service,
	codec *checkin.Codec,
	validate *validator.Validate,
) {
	api := sessionApi{
		registry:   registry,
		checkinSvc: checkinSvc,
		codec:      codec,
		validate:   validate,
	}

	// operator endpoints
	sg := g.Group("/sessions", jwt, operatorMiddleware())
	sg.POST("", api.create)
	sg.GET("/:id", api.retrieve)
	sg.GET("/:id/records", api.records)
	sg.POST("/:id/close", api.close)
	sg.POST("/:id/token", api.issueToken)
}

type createSessionRequest struct {
	session.NewSession
	PointValue int `json:"point_value" validate:"min=0"`
}

type sessionResponse struct {
	Session session.Session `json:"session"`
	Token   string          `json:"token,omitempty"`
}

func (api sessionApi) create(ctx echo.Context) error {
	var req createSessionRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if err := req.NewSession.Validate(api.validate); err != nil {
		return err
	}
	if err := api.validate.StructExcept(&req, "NewSession"); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	sess, err := api.registry.Create(rctx, req.NewSession)
	if err != nil {
		return err
	}
	token, err := api.codec.Encode(sess, req.PointValue)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sessionResponse{Session: sess, Token: token})
}

func (api sessionApi) retrieve(ctx echo.Context) error {
	sess, err := api.registry.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sessionResponse{Session: sess})
}

func (api sessionApi) records(ctx echo.Context) error {
	recs, err := api.checkinSvc.Query(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api sessionApi) close(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	sess, err := api.registry.Close(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	// final snapshot + stream termination
	if err := api.checkinSvc.Finish(rctx, sess.ID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sessionResponse{Session: sess})
}

type issueTokenRequest struct {
	PointValue int `json:"point_value" validate:"min=0"`
}

func (api sessionApi) issueToken(ctx echo.Context) error {
	var req issueTokenRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if err := api.validate.Struct(&req); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	sess, err := api.registry.GetByID(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	if sess.Closed {
		return checkin.ErrSessionClosed
	}
	token, err := api.codec.Encode(sess, req.PointValue)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sessionResponse{Session: sess, Token: token})
}
