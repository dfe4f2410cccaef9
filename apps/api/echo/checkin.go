package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/techjoejoe/leadergrid/core/checkin"
)

type checkinApi struct {
	svc        *checkin.Service
	codec      *checkin.Codec
	validate   *validator.Validate
	translator ut.Translator
}

func registerCheckinAPI(
	g *echo.Group,
	svc *checkin.Service,
	codec *checkin.Codec,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := checkinApi{
		svc:        svc,
		codec:      codec,
		validate:   validate,
		translator: translator,
	}

	cg := g.Group("/checkin")

	// participant endpoints; identity comes from the external provider,
	// tokens are bearer credentials
	cg.POST("/scan", api.scan)
	cg.GET("/sessions/:id/aggregate", api.aggregate)
	cg.GET("/sessions/:id/live", api.live)
}

type scanResponse struct {
	Record        checkin.AttendanceRecord `json:"record"`
	CreditPending bool                     `json:"credit_pending"`
}

func (api checkinApi) scan(ctx echo.Context) error {
	var p checkin.Presentation
	if err := ctx.Bind(&p); err != nil {
		return err
	}
	if err := p.Validate(api.validate); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	token, err := api.codec.Decode(rctx, p.Token)
	if err != nil {
		return err
	}

	rec, err := api.svc.Record(rctx, p, token)
	if err != nil {
		// partial success: attendance stands, payout queued for retry
		if _, ok := errors.Cause(err).(*checkin.CreditError); ok {
			return ctx.JSON(http.StatusCreated, scanResponse{Record: rec, CreditPending: true})
		}
		return err
	}
	return ctx.JSON(http.StatusCreated, scanResponse{Record: rec})
}

func (api checkinApi) aggregate(ctx echo.Context) error {
	view, err := api.svc.Aggregate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, view)
}

// live streams the session's aggregate view as server-sent events: a full
// snapshot first, then one event per ledger update, until the session closes.
func (api checkinApi) live(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	feed, cancel, err := api.svc.Subscribe(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	defer cancel()

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	for {
		select {
		case view, ok := <-feed:
			if !ok {
				// session closed; final snapshot already delivered
				return nil
			}
			data, err := json.Marshal(view)
			if err != nil {
				return errors.Wrap(err, "marshalling aggregate view")
			}
			if _, err := fmt.Fprintf(res, "data: %s\n\n", data); err != nil {
				return nil // subscriber went away
			}
			res.Flush()
		case <-rctx.Done():
			return nil
		}
	}
}
