package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/techjoejoe/leadergrid/apps/api/echo"
	"github.com/techjoejoe/leadergrid/core"
	"github.com/techjoejoe/leadergrid/core/checkin"
	"github.com/techjoejoe/leadergrid/core/points"
	"github.com/techjoejoe/leadergrid/core/session"
	"github.com/techjoejoe/leadergrid/storage/database"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf       *core.Config
	db         *sqlx.DB
	sessRepo   session.Repository
	creditRepo points.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migratedb - run pending DB migrations")
	fmt.Println("  createsession -name NAME -group GROUP -deadline RFC3339 -count N [-points N] - create a session and print its token")
	fmt.Println("  closesession -id ID - close a session")
	fmt.Println("  issuetoken -id ID [-points N] - mint a fresh token for an open session")
	fmt.Println("  balance -account ID - print an account's points balance")
	fmt.Println("  operatortoken -name NAME - mint an operator JWT for the API")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createCmd := flag.NewFlagSet("createsession", flag.ExitOnError)
	createName := createCmd.String("name", "", "The session's display name.")
	createGroup := createCmd.String("group", "", "The owning group's ID.")
	createDeadline := createCmd.String("deadline", "", "The on-time deadline, RFC3339.")
	createCount := createCmd.Int("count", 0, "The expected participant count.")
	createPoints := createCmd.Int("points", 0, "The token's point value.")

	closeCmd := flag.NewFlagSet("closesession", flag.ExitOnError)
	closeID := closeCmd.String("id", "", "The session's ID.")

	tokenCmd := flag.NewFlagSet("issuetoken", flag.ExitOnError)
	tokenID := tokenCmd.String("id", "", "The session's ID.")
	tokenPoints := tokenCmd.Int("points", 0, "The token's point value.")

	balanceCmd := flag.NewFlagSet("balance", flag.ExitOnError)
	balanceAccount := balanceCmd.String("account", "", "The account's ID.")

	opCmd := flag.NewFlagSet("operatortoken", flag.ExitOnError)
	opName := opCmd.String("name", "", "The operator's display name.")

	switch args[1] {
	case "migratedb":
		return database.Migrate(cli.db)
	case "createsession":
		if err := createCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *createName == "" || *createGroup == "" || *createDeadline == "" || *createCount < 1 {
			createCmd.Usage()
			return errHelp
		}
		return cli.createSession(*createName, *createGroup, *createDeadline, *createCount, *createPoints)
	case "closesession":
		if err := closeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *closeID == "" {
			closeCmd.Usage()
			return errHelp
		}
		return cli.closeSession(*closeID)
	case "issuetoken":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenID == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.issueToken(*tokenID, *tokenPoints)
	case "balance":
		if err := balanceCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *balanceAccount == "" {
			balanceCmd.Usage()
			return errHelp
		}
		return cli.balance(*balanceAccount)
	case "operatortoken":
		if err := opCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *opName == "" {
			opCmd.Usage()
			return errHelp
		}
		return cli.operatorToken(*opName)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) createSession(name, group, deadline string, count, pointValue int) error {
	dl, err := time.Parse(time.RFC3339, deadline)
	if err != nil {
		return fmt.Errorf("parsing deadline: %w", err)
	}

	ctx := context.Background()
	logSvc := core.NewConsoleLogger(logger)
	registry := session.NewRegistry(cli.sessRepo, logSvc)
	sess, err := registry.Create(ctx, session.NewSession{
		Name:          name,
		GroupID:       group,
		Deadline:      dl,
		ExpectedCount: count,
	})
	if err != nil {
		return err
	}

	codec := checkin.NewCodec(cli.conf, directory{cli.sessRepo})
	token, err := codec.Encode(sess, pointValue)
	if err != nil {
		return err
	}
	fmt.Printf("session: %s\ntoken: %s\n", sess.ID, token)
	return nil
}

func (cli *commandLine) closeSession(id string) error {
	sess, err := cli.sessRepo.CloseSession(context.Background(), id)
	if err != nil {
		return err
	}
	fmt.Printf("session %s closed\n", sess.ID)
	return nil
}

func (cli *commandLine) issueToken(id string, pointValue int) error {
	ctx := context.Background()
	sess, err := cli.sessRepo.GetSessionByID(ctx, id)
	if err != nil {
		return err
	}
	if sess.Closed {
		return checkin.ErrSessionClosed
	}

	codec := checkin.NewCodec(cli.conf, directory{cli.sessRepo})
	token, err := codec.Encode(sess, pointValue)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func (cli *commandLine) balance(accountID string) error {
	balance, err := cli.creditRepo.GetBalance(context.Background(), accountID)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d points\n", accountID, balance)
	return nil
}

func (cli *commandLine) operatorToken(name string) error {
	claims := echoapi.GetOperatorClaims(cli.conf, name, name)
	token, err := echoapi.GenerateToken(cli.conf, claims)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// directory adapts a session.Repository to the engine's read-only lookup.
type directory struct {
	repo session.Repository
}

func (d directory) GetSession(ctx context.Context, id string) (session.Session, error) {
	return d.repo.GetSessionByID(ctx, id)
}
