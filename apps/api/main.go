package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/techjoejoe/leadergrid/apps/api/echo"
	"github.com/techjoejoe/leadergrid/core"
	"github.com/techjoejoe/leadergrid/core/checkin"
	"github.com/techjoejoe/leadergrid/core/points"
	"github.com/techjoejoe/leadergrid/core/session"
	"github.com/techjoejoe/leadergrid/services/email"
	"github.com/techjoejoe/leadergrid/services/logger"
	"github.com/techjoejoe/leadergrid/storage/database"
	"github.com/techjoejoe/leadergrid/storage/database/sqlx"
)

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	if err != nil {
		std.Fatal(err)
	}

	var logger core.Logger
	if conf.Debug || conf.RollbarToken == "" {
		logger = core.NewConsoleLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	// set up DB
	db, err := database.Open(conf)
	errAndDie(logger, err)
	defer db.Close()
	errAndDie(logger, db.Ping())

	// set up repos
	sessRepo := sqlxrepos.NewSessionRepository(db)
	attRepo := sqlxrepos.NewAttendanceRepository(db)
	creditRepo := sqlxrepos.NewCreditRepository(db)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf)
	}
	pointsSvc := points.NewService(creditRepo, logger)
	registry := session.NewRegistry(sessRepo, logger)
	codec := checkin.NewCodec(conf, sessRepo)

	retrier := checkin.NewCreditRetrier(pointsSvc, conf, logger, mailSvc)
	stream := checkin.NewStream(attRepo, logger)
	bonus := checkin.NewBonusEvaluator(attRepo, pointsSvc, retrier, conf, logger)
	checkinSvc := checkin.NewService(attRepo, sessRepo, pointsSvc, stream, bonus, retrier, conf, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	retrier.Start(ctx)
	defer retrier.Stop()

	// close sessions past their deadline and terminate their streams
	go expireLoop(ctx, registry, checkinSvc, logger)

	// start API server
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	app := echoapi.NewServer(&echoapi.Options{
		Addr:           conf.Server.Host + ":" + conf.Server.Port,
		Conf:           conf,
		Logger:         logger,
		Registry:       registry,
		CheckinSvc:     checkinSvc,
		Codec:          codec,
		SignalShutdown: func() { shutdown <- syscall.SIGTERM },
	})
	go app.Start()

	<-shutdown
	stopCtx, stopCancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		logger.Error("stopping server", err)
	}
}

func expireLoop(ctx context.Context, registry *session.Registry, svc *checkin.Service, logger core.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			closed, err := registry.ExpireDue(ctx, 0)
			if err != nil {
				logger.Error("expiring due sessions", err)
				continue
			}
			for _, sess := range closed {
				if err := svc.Finish(ctx, sess.ID); err != nil {
					logger.Error("finishing expired session "+sess.ID, err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error())
	}
}
